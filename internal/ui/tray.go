// Package ui provides the optional system tray control for the agent.
package ui

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/invoiceworks/invoice-agent/internal/invoice"
	"github.com/invoiceworks/invoice-agent/internal/monitor"
)

type Tray struct {
	coordinator *monitor.Coordinator
	store       *invoice.Store
	logger      *slog.Logger

	statusItem    *systray.MenuItem
	processedItem *systray.MenuItem
	pauseItem     *systray.MenuItem

	mu sync.Mutex

	onQuit func()
	done   chan struct{}
}

type TrayConfig struct {
	Coordinator *monitor.Coordinator
	Store       *invoice.Store
	Logger      *slog.Logger
	OnQuit      func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		coordinator: cfg.Coordinator,
		store:       cfg.Store,
		logger:      cfg.Logger,
		onQuit:      cfg.OnQuit,
		done:        make(chan struct{}),
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(trayIcon())
	systray.SetTitle("Invoice Agent")
	systray.SetTooltip("Invoice Processing Agent")

	t.statusItem = systray.AddMenuItem("Status: Watching", "Current agent status")
	t.statusItem.Disable()

	t.processedItem = systray.AddMenuItem("Processed: 0", "Invoices processed this session")
	t.processedItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause folder sweeps")
	sweepItem := systray.AddMenuItem("Process Now", "Sweep the intake folder immediately")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Invoice Agent")

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-sweepItem.ClickedCh:
				t.logger.Info("sweep requested from tray")
				t.coordinator.TriggerSweep(false)
			case <-ticker.C:
				t.refreshCounters()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-t.done:
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.coordinator.IsPaused() {
		t.coordinator.Resume()
		t.pauseItem.SetTitle("Pause")
		t.statusItem.SetTitle("Status: Watching")
	} else {
		t.coordinator.Pause()
		t.pauseItem.SetTitle("Resume")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) refreshCounters() {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := t.store.Stats(t.coordinator.PendingCount())
	t.processedItem.SetTitle(fmt.Sprintf("Processed: %d", stats.TotalProcessed))

	if !t.coordinator.IsPaused() {
		if stats.Processing > 0 {
			t.statusItem.SetTitle(fmt.Sprintf("Status: Processing (%d)", stats.Processing))
		} else {
			t.statusItem.SetTitle("Status: Watching")
		}
	}
}

func (t *Tray) Quit() {
	close(t.done)
}

// trayIcon renders the menu bar glyph: a document with a folded corner.
func trayIcon() []byte {
	const size = 16
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	body := color.RGBA{R: 240, G: 240, B: 240, A: 255}
	line := color.RGBA{R: 90, G: 90, B: 90, A: 255}

	for y := 1; y < size-1; y++ {
		for x := 3; x < size-3; x++ {
			if y < 4 && x > size-7 {
				continue // folded corner
			}
			img.Set(x, y, body)
		}
	}
	for _, y := range []int{5, 8, 11} {
		for x := 5; x < size-5; x++ {
			img.Set(x, y, line)
		}
	}

	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}
