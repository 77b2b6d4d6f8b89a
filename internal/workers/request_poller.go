package workers

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Refresher reloads one view. *validation.Board implements it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RequestPoller refreshes the request board on a fixed interval while the
// screen is open. A tick that arrives while the previous refresh is still
// running is skipped, so refreshes never overlap.
type RequestPoller struct {
	Board      Refresher
	IntervalMs int // default: 15000

	// OnRefresh is called after every attempt with its outcome.
	OnRefresh func(err error, d time.Duration)
	// OnSkip is called for every tick dropped because of an in-flight refresh.
	OnSkip func()

	running atomic.Bool
}

// Start runs the loop until ctx is cancelled.
func (w *RequestPoller) Start(ctx context.Context) {
	if w.IntervalMs <= 0 {
		w.IntervalMs = 15000
	}

	ticker := time.NewTicker(time.Duration(w.IntervalMs) * time.Millisecond)
	defer ticker.Stop()

	log.Printf("[RequestPoller] started (interval=%dms)", w.IntervalMs)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[RequestPoller] stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick starts one refresh in the background unless one is in flight. It
// reports whether a refresh was started.
func (w *RequestPoller) Tick(ctx context.Context) bool {
	if !w.running.CompareAndSwap(false, true) {
		if w.OnSkip != nil {
			w.OnSkip()
		}
		return false
	}
	go func() {
		defer w.running.Store(false)
		w.refresh(ctx)
	}()
	return true
}

// InFlight reports whether a refresh is currently running.
func (w *RequestPoller) InFlight() bool { return w.running.Load() }

func (w *RequestPoller) refresh(ctx context.Context) {
	start := time.Now()
	err := w.Board.Refresh(ctx)
	d := time.Since(start)
	if err != nil && ctx.Err() == nil {
		log.Printf("[RequestPoller] refresh error: %v", err)
	}
	if w.OnRefresh != nil {
		w.OnRefresh(err, d)
	}
}
