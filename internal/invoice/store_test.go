package invoice

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func storedResult(id, filename, status string, updated time.Time) *ProcessingResult {
	return &ProcessingResult{
		FileID:           id,
		OriginalFilename: filename,
		Status:           status,
		CreatedAt:        updated,
		UpdatedAt:        updated,
	}
}

func TestStore_PutGetDelete(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	store.Put(storedResult("abc123", "inv.pdf", StatusSuccess, now))

	if got := store.Get("abc123"); got == nil || got.OriginalFilename != "inv.pdf" {
		t.Fatalf("Get(abc123) = %+v", got)
	}
	if got := store.Get("missing"); got != nil {
		t.Fatalf("Get(missing) = %+v, want nil", got)
	}

	if !store.Delete("abc123") {
		t.Fatal("Delete(abc123) = false, want true")
	}
	if store.Get("abc123") != nil {
		t.Fatal("result still present after delete")
	}
	if store.Delete("abc123") {
		t.Fatal("Delete of unknown id = true, want false")
	}
}

func TestStore_ListRecentOrderAndLimit(t *testing.T) {
	store := NewStore()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		store.Put(storedResult(
			fmt.Sprintf("id-%d", i),
			fmt.Sprintf("f%d.jpg", i),
			StatusSuccess,
			base.Add(time.Duration(i)*time.Second),
		))
	}

	recent := store.ListRecent(3)
	if len(recent) != 3 {
		t.Fatalf("ListRecent(3) returned %d results", len(recent))
	}
	if recent[0].FileID != "id-4" || recent[2].FileID != "id-2" {
		t.Errorf("unexpected order: %s, %s, %s", recent[0].FileID, recent[1].FileID, recent[2].FileID)
	}

	all := store.ListRecent(0)
	if len(all) != 5 {
		t.Errorf("ListRecent(0) returned %d results, want all 5", len(all))
	}
}

func TestStore_CopiesInAndOut(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	r := storedResult("abc123", "inv.pdf", StatusProcessing, now)
	store.Put(r)

	// Mutating the caller's record after Put must not leak into the store.
	r.Status = StatusFailed
	r.ErrorMessage = "local scratch state"
	if got := store.Get("abc123"); got.Status != StatusProcessing || got.ErrorMessage != "" {
		t.Fatalf("store leaked caller mutation: %+v", got)
	}

	// Mutating what Get handed out must not change the stored record.
	got := store.Get("abc123")
	got.Status = StatusSuccess
	if store.Get("abc123").Status != StatusProcessing {
		t.Error("Get returned a live pointer into the store")
	}

	// Same isolation for ListRecent and LatestByFilename.
	store.ListRecent(0)[0].Status = StatusFailed
	if store.Get("abc123").Status != StatusProcessing {
		t.Error("ListRecent returned a live pointer into the store")
	}
	store.LatestByFilename("inv.pdf").Status = StatusFailed
	if store.Get("abc123").Status != StatusProcessing {
		t.Error("LatestByFilename returned a live pointer into the store")
	}
}

func TestStore_ConcurrentReadersDuringTransitions(t *testing.T) {
	store := NewStore()
	done := make(chan struct{})
	var wg sync.WaitGroup

	// Readers continuously list and aggregate while results transition.
	// A success must always carry its processing time: the writer sets
	// both before publishing, so observing one without the other is a
	// torn read.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				for _, r := range store.ListRecent(0) {
					if r.Status == StatusSuccess && r.ProcessingTime == nil {
						t.Error("observed success without processing time")
						return
					}
				}
				store.Stats(0)
			}
		}()
	}

	for i := 0; i < 50; i++ {
		r := storedResult(fmt.Sprintf("id-%d", i), fmt.Sprintf("f%d.png", i), StatusProcessing, time.Now().UTC())
		store.Put(r)
		elapsed := float64(i)
		r.ProcessingTime = &elapsed
		r.Status = StatusSuccess
		store.MarkUpdated(r)
	}

	close(done)
	wg.Wait()
}

func TestStore_LatestByFilename(t *testing.T) {
	store := NewStore()
	base := time.Now().UTC()

	store.Put(storedResult("old", "inv.pdf", StatusFailed, base))
	store.Put(storedResult("new", "inv.pdf", StatusSuccess, base.Add(time.Minute)))
	store.Put(storedResult("other", "other.pdf", StatusSuccess, base.Add(time.Hour)))

	got := store.LatestByFilename("inv.pdf")
	if got == nil || got.FileID != "new" {
		t.Fatalf("LatestByFilename = %+v, want id new", got)
	}
	if store.LatestByFilename("never-seen.pdf") != nil {
		t.Error("LatestByFilename for unknown filename should be nil")
	}
}

func TestStore_Stats(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	fast, slow := 2.0, 4.0
	ok1 := storedResult("s1", "a.jpg", StatusSuccess, now)
	ok1.ProcessingTime = &fast
	ok2 := storedResult("s2", "b.jpg", StatusSuccess, now)
	ok2.ProcessingTime = &slow
	bad := storedResult("f1", "c.jpg", StatusFailed, now)
	elapsed := 9.0
	bad.ProcessingTime = &elapsed
	inflight := storedResult("p1", "d.jpg", StatusProcessing, now)

	for _, r := range []*ProcessingResult{ok1, ok2, bad, inflight} {
		store.Put(r)
	}

	stats := store.Stats(7)

	if stats.TotalProcessed != 3 {
		t.Errorf("TotalProcessed = %d, want 3", stats.TotalProcessed)
	}
	if stats.Successful != 2 || stats.Failed != 1 || stats.Processing != 1 {
		t.Errorf("counters = %+v", stats)
	}
	if stats.Pending != 7 {
		t.Errorf("Pending = %d, want 7", stats.Pending)
	}
	// Mean over successes only; the failed entry's elapsed time is excluded.
	if stats.AverageProcessingTime != 3.0 {
		t.Errorf("AverageProcessingTime = %v, want 3.0", stats.AverageProcessingTime)
	}
}
