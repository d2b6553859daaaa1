// Package monitor coordinates file intake: filesystem events and a
// periodic reconciliation sweep both feed one bounded queue, whose sole
// consumer drains it in bounded-concurrency batches through the processor.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/invoiceworks/invoice-agent/internal/invoice"
	"github.com/invoiceworks/invoice-agent/internal/logging"
	"github.com/invoiceworks/invoice-agent/internal/processor"
	"github.com/invoiceworks/invoice-agent/internal/watcher"
)

const (
	defaultQueueCapacity = 256
	defaultBatchPause    = time.Second
	defaultSweepBackoff  = 30 * time.Second
)

// Config holds the coordinator's intake parameters.
type Config struct {
	IncomingDir      string
	SupportedFormats []string
	BatchSize        int
	SweepInterval    time.Duration
	SettleDelay      time.Duration

	// Optional tuning; zero values pick defaults.
	QueueCapacity int
	BatchPause    time.Duration
	SweepBackoff  time.Duration
}

type queueItem struct {
	path  string
	force bool
}

// Coordinator owns the intake queue. The watcher and the sweep are
// producers, the drain loop is the single consumer.
type Coordinator struct {
	cfg    Config
	proc   *processor.Processor
	watch  watcher.Watcher
	logger *slog.Logger

	queue chan queueItem

	mu       sync.Mutex
	inflight map[string]struct{}

	// runMu orders lifecycle transitions and background-work registration
	// against Stop's Wait; see begin.
	runMu    sync.Mutex
	running  atomic.Bool
	sweeping atomic.Bool
	paused   atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, proc *processor.Processor, watch watcher.Watcher, logger *slog.Logger) *Coordinator {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = defaultBatchPause
	}
	if cfg.SweepBackoff <= 0 {
		cfg.SweepBackoff = defaultSweepBackoff
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	return &Coordinator{
		cfg:      cfg,
		proc:     proc,
		watch:    watch,
		logger:   logger,
		queue:    make(chan queueItem, cfg.QueueCapacity),
		inflight: make(map[string]struct{}),
	}
}

// Start begins watching and sweeping. It is idempotent: a second call on a
// running coordinator is a no-op. Files already present in the intake
// folder are enqueued on first start.
func (c *Coordinator) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.running.Load() {
		c.logger.Warn("coordinator already running")
		return nil
	}

	if err := os.MkdirAll(c.cfg.IncomingDir, 0755); err != nil {
		return fmt.Errorf("cannot create intake directory: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.ctx = runCtx
	c.cancel = cancel

	c.watch.OnChange(func(path string, _ watcher.EventType) {
		c.handleFileEvent(runCtx, path)
	})
	if err := c.watch.Watch(runCtx, c.cfg.IncomingDir); err != nil {
		cancel()
		return err
	}

	c.running.Store(true)
	c.wg.Add(2)
	go c.drainLoop(runCtx)
	go c.sweepLoop(runCtx)

	if err := c.sweepOnce(false); err != nil {
		c.logger.Error("initial intake sweep failed", "error", err)
	}

	c.logger.Info("coordinator started",
		"incoming_dir", logging.SanitizePath(c.cfg.IncomingDir),
		"batch_size", c.cfg.BatchSize,
		"sweep_interval", c.cfg.SweepInterval,
	)
	return nil
}

// Stop tears the coordinator down: the watcher stops, the loops exit at
// their next scheduling point, and Stop returns once both are done.
// In-flight per-file operations run to their own timeouts.
func (c *Coordinator) Stop() {
	c.runMu.Lock()
	if !c.running.Load() {
		c.runMu.Unlock()
		return
	}
	c.running.Store(false)
	c.runMu.Unlock()

	if err := c.watch.Stop(); err != nil {
		c.logger.Warn("error stopping watcher", "error", err)
	}
	c.cancel()
	c.wg.Wait()
	c.logger.Info("coordinator stopped")
}

func (c *Coordinator) IsRunning() bool { return c.running.Load() }

// begin registers one unit of background work unless the coordinator is
// stopped. Holding runMu means every Add strictly precedes Stop flipping
// the flag, so the WaitGroup counter can never rise concurrently with
// Stop's Wait.
func (c *Coordinator) begin() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if !c.running.Load() {
		return false
	}
	c.wg.Add(1)
	return true
}

// Pause suspends periodic sweeps. Event-driven and on-demand processing
// continue.
func (c *Coordinator) Pause()         { c.paused.Store(true) }
func (c *Coordinator) Resume()        { c.paused.Store(false) }
func (c *Coordinator) IsPaused() bool { return c.paused.Load() }

// QueueSize reports the number of entries waiting in the queue.
func (c *Coordinator) QueueSize() int { return len(c.queue) }

// ProcessNow runs one file through the pipeline in the background,
// bypassing the queue. Relative paths resolve against the intake folder.
// Unlike a sweep, it is never blocked by an in-progress sweep.
func (c *Coordinator) ProcessNow(path string, force bool) {
	if _, err := os.Stat(path); err != nil && !filepath.IsAbs(path) {
		path = filepath.Join(c.cfg.IncomingDir, path)
	}
	if !c.begin() {
		return
	}
	go func() {
		defer c.wg.Done()
		c.proc.ProcessFile(c.ctx, path, force)
	}()
}

// TriggerSweep requests a full intake sweep in the background. Overlapping
// sweeps collapse into one.
func (c *Coordinator) TriggerSweep(force bool) {
	if !c.begin() {
		return
	}
	go func() {
		defer c.wg.Done()
		if err := c.sweepOnce(force); err != nil {
			c.logger.Error("on-demand sweep failed", "error", err)
		}
	}()
}

// PendingCount counts supported files currently visible in the intake
// folder.
func (c *Coordinator) PendingCount() int {
	entries, err := os.ReadDir(c.cfg.IncomingDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && invoice.IsSupportedFormat(e.Name(), c.cfg.SupportedFormats) {
			count++
		}
	}
	return count
}

// handleFileEvent debounces a watch event with the settle delay so a file
// still being written is not read prematurely, then enqueues it.
func (c *Coordinator) handleFileEvent(ctx context.Context, path string) {
	name := filepath.Base(path)
	if !invoice.IsSupportedFormat(name, c.cfg.SupportedFormats) {
		c.logger.Debug("ignoring unsupported file", "filename", name)
		return
	}

	if !c.begin() {
		return
	}
	go func() {
		defer c.wg.Done()

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.SettleDelay):
		}

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			// Gone again or a directory: nothing to do.
			return
		}
		c.enqueue(path, false)
	}()
}

// enqueue adds a path to the queue unless it is already in flight. A full
// queue drops the entry; the periodic sweep recovers it.
func (c *Coordinator) enqueue(path string, force bool) bool {
	c.mu.Lock()
	if _, ok := c.inflight[path]; ok {
		c.mu.Unlock()
		return false
	}
	c.inflight[path] = struct{}{}
	c.mu.Unlock()

	select {
	case c.queue <- queueItem{path: path, force: force}:
		return true
	default:
		c.release(path)
		c.logger.Warn("intake queue full, dropping event", "path", logging.SanitizePath(path))
		return false
	}
}

func (c *Coordinator) release(path string) {
	c.mu.Lock()
	delete(c.inflight, path)
	c.mu.Unlock()
}

// drainLoop is the queue's sole consumer. It gathers entries into batches
// of at most BatchSize, runs each batch concurrently, waits for the whole
// batch, and paces between batches.
func (c *Coordinator) drainLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		var first queueItem
		select {
		case <-ctx.Done():
			return
		case first = <-c.queue:
		}

		batch := []queueItem{first}
	fill:
		for len(batch) < c.cfg.BatchSize {
			select {
			case it := <-c.queue:
				batch = append(batch, it)
			default:
				break fill
			}
		}

		c.processBatch(ctx, batch)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.BatchPause):
		}
	}
}

// processBatch runs all members concurrently and awaits them all. A bad
// file never aborts its siblings: per-file failures are recorded by the
// processor, and a panic is contained to its entry.
func (c *Coordinator) processBatch(ctx context.Context, batch []queueItem) {
	g, gctx := errgroup.WithContext(ctx)
	for _, it := range batch {
		it := it
		g.Go(func() error {
			defer c.release(it.path)
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("panic while processing file", "path", logging.SanitizePath(it.path), "panic", r)
				}
			}()
			c.proc.ProcessFile(gctx, it.path, it.force)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error("batch error", "error", err)
	}
}

// sweepLoop re-scans the intake folder on a fixed interval, recovering
// files whose events were missed. Sweep errors back off longer before the
// next attempt.
func (c *Coordinator) sweepLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.paused.Load() {
				continue
			}
			if err := c.sweepOnce(false); err != nil {
				c.logger.Error("periodic sweep failed", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.cfg.SweepBackoff):
				}
			}
		}
	}
}

// sweepOnce scans the intake folder and enqueues every supported file that
// is not in flight and has not already succeeded. A second sweep while one
// is running is a no-op; on-demand single-file processing is unaffected.
func (c *Coordinator) sweepOnce(force bool) error {
	if c.sweeping.Swap(true) {
		c.logger.Debug("sweep already in progress, skipping")
		return nil
	}
	defer c.sweeping.Store(false)

	entries, err := os.ReadDir(c.cfg.IncomingDir)
	if err != nil {
		return fmt.Errorf("cannot scan intake directory: %w", err)
	}

	queued := 0
	for _, e := range entries {
		if e.IsDir() || !invoice.IsSupportedFormat(e.Name(), c.cfg.SupportedFormats) {
			continue
		}
		if !force {
			if prior := c.proc.Store().LatestByFilename(e.Name()); prior != nil && prior.Status == invoice.StatusSuccess {
				continue
			}
		}
		if c.enqueue(filepath.Join(c.cfg.IncomingDir, e.Name()), force) {
			queued++
		}
	}

	if queued > 0 {
		c.logger.Info("sweep queued files", "count", queued)
	}
	return nil
}
