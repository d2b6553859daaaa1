// Package watcher delivers filesystem events for the intake directory.
package watcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

type EventType int

const (
	EventCreate EventType = iota
	EventMove
)

// Watcher reports files appearing in a directory. Callbacks fire on the
// watcher's own goroutine; consumers must not block in them.
type Watcher interface {
	Watch(ctx context.Context, path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

// FSWatcher implements Watcher on top of fsnotify.
type FSWatcher struct {
	logger   *slog.Logger
	callback func(path string, event EventType)
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

func NewFSWatcher(logger *slog.Logger) *FSWatcher {
	return &FSWatcher{logger: logger}
}

func (w *FSWatcher) OnChange(callback func(path string, event EventType)) {
	w.callback = callback
}

// Watch starts delivering events for path until the context is cancelled
// or Stop is called. A file moved into the directory surfaces as a create
// event on most platforms; both kinds are forwarded identically.
func (w *FSWatcher) Watch(ctx context.Context, path string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return fmt.Errorf("cannot watch %s: %w", path, err)
	}

	w.fsw = fsw
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				w.dispatch(ev)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watcher error", "error", err)
			}
		}
	}()

	w.logger.Info("watching directory", "path", path)
	return nil
}

func (w *FSWatcher) dispatch(ev fsnotify.Event) {
	if w.callback == nil {
		return
	}
	switch {
	case ev.Op.Has(fsnotify.Create):
		w.callback(ev.Name, EventCreate)
	case ev.Op.Has(fsnotify.Rename):
		w.callback(ev.Name, EventMove)
	}
}

func (w *FSWatcher) Stop() error {
	if w.fsw == nil {
		return nil
	}
	err := w.fsw.Close()
	<-w.done
	w.fsw = nil
	return err
}
