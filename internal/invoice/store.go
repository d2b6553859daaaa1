package invoice

import (
	"sort"
	"sync"
	"time"
)

// Store is the in-memory keyed collection of processing results. A coarse
// RWMutex gives concurrent readers and a single logical writer per file_id
// without torn reads: records are copied on the way in and on the way out,
// so the stored record is only ever replaced under the write lock, never
// mutated while a reader holds it. Results survive until explicitly
// deleted; restarts are covered by the archive, not the store.
type Store struct {
	mu      sync.RWMutex
	results map[string]*ProcessingResult
}

func NewStore() *Store {
	return &Store{results: make(map[string]*ProcessingResult)}
}

// clone copies a result for handoff across the store boundary. InvoiceData
// is written once when a result turns terminal and never mutated afterwards,
// so sharing the pointer is safe.
func (r *ProcessingResult) clone() *ProcessingResult {
	cp := *r
	if r.ProcessingTime != nil {
		v := *r.ProcessingTime
		cp.ProcessingTime = &v
	}
	return &cp
}

// Put inserts or replaces a result by file id. The store keeps its own
// copy; the caller's record stays private to the caller.
func (s *Store) Put(r *ProcessingResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.FileID] = r.clone()
}

// Get returns a copy of the result for a file id, or nil when unknown.
func (s *Store) Get(fileID string) *ProcessingResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.results[fileID]; ok {
		return r.clone()
	}
	return nil
}

// LatestByFilename returns the most recently updated result recorded for an
// original filename. The success cache in the processor keys on it because
// file ids are unique per submission, not per file content.
func (s *Store) LatestByFilename(filename string) *ProcessingResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *ProcessingResult
	for _, r := range s.results {
		if r.OriginalFilename != filename {
			continue
		}
		if latest == nil || r.UpdatedAt.After(latest.UpdatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil
	}
	return latest.clone()
}

// ListRecent returns copies of up to limit results ordered by last update,
// newest first.
func (s *Store) ListRecent(limit int) []*ProcessingResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*ProcessingResult, 0, len(s.results))
	for _, r := range s.results {
		results = append(results, r.clone())
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Delete removes a result and reports whether it existed.
func (s *Store) Delete(fileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[fileID]; !ok {
		return false
	}
	delete(s.results, fileID)
	return true
}

// MarkUpdated stamps a result and re-inserts it. Callers mutate the record
// they own, then publish the transition through here.
func (s *Store) MarkUpdated(r *ProcessingResult) {
	r.UpdatedAt = time.Now().UTC()
	s.Put(r)
}

// Stats recomputes the aggregate counters. pendingFiles is the number of
// unprocessed files currently visible in the intake folder, supplied by the
// caller because the store knows nothing about the filesystem. The mean
// processing time covers terminal successes only.
func (s *Store) Stats(pendingFiles int) SystemStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := SystemStats{Pending: pendingFiles}
	var totalTime float64

	for _, r := range s.results {
		switch r.Status {
		case StatusSuccess:
			stats.TotalProcessed++
			stats.Successful++
			if r.ProcessingTime != nil {
				totalTime += *r.ProcessingTime
			}
		case StatusFailed:
			stats.TotalProcessed++
			stats.Failed++
		case StatusProcessing:
			stats.Processing++
		}
	}

	if stats.Successful > 0 {
		stats.AverageProcessingTime = totalTime / float64(stats.Successful)
	}
	return stats
}
