package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type blockingBoard struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (b *blockingBoard) Refresh(ctx context.Context) error {
	b.calls.Add(1)
	if b.release != nil {
		<-b.release
	}
	return b.err
}

func TestRequestPoller_SkipsOverlappingTicks(t *testing.T) {
	b := &blockingBoard{release: make(chan struct{})}
	var skips atomic.Int32
	done := make(chan error, 1)
	w := &RequestPoller{
		Board:     b,
		OnSkip:    func() { skips.Add(1) },
		OnRefresh: func(err error, _ time.Duration) { done <- err },
	}

	if !w.Tick(context.Background()) {
		t.Fatalf("first tick should start a refresh")
	}
	if w.Tick(context.Background()) || w.Tick(context.Background()) {
		t.Fatalf("ticks during an in-flight refresh must be skipped")
	}
	if skips.Load() != 2 {
		t.Fatalf("expected 2 skips, got %d", skips.Load())
	}
	close(b.release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for w.InFlight() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !w.Tick(context.Background()) {
		t.Fatalf("tick after completion should start a refresh")
	}
	<-done
	if got := b.calls.Load(); got != 2 {
		t.Fatalf("expected 2 refreshes, got %d", got)
	}
}

func TestRequestPoller_ReportsErrors(t *testing.T) {
	b := &blockingBoard{err: errors.New("offline")}
	done := make(chan error, 1)
	w := &RequestPoller{Board: b, OnRefresh: func(err error, _ time.Duration) { done <- err }}
	w.Tick(context.Background())
	if err := <-done; err == nil || err.Error() != "offline" {
		t.Fatalf("expected offline error, got %v", err)
	}
}

func TestRequestPoller_StartStopsOnCancel(t *testing.T) {
	b := &blockingBoard{}
	refreshed := make(chan struct{}, 8)
	w := &RequestPoller{Board: b, IntervalMs: 5, OnRefresh: func(error, time.Duration) {
		select {
		case refreshed <- struct{}{}:
		default:
		}
	}}
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()
	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatalf("poller never refreshed")
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not stop")
	}
}

type fixedToken string

func (f fixedToken) Load(context.Context) (string, error) { return string(f), nil }

func TestSessionExpiryWorker(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	verified := 0
	w := &SessionExpiryWorker{
		Tokens: fixedToken("tok"),
		Expiry: func(string) (time.Time, bool) { return now.Add(-time.Minute), true },
		Verify: func(context.Context) error { verified++; return nil },
		Now:    func() time.Time { return now },
	}
	if !w.Check(context.Background()) || verified != 1 {
		t.Fatalf("expected re-verification, got verified=%d", verified)
	}

	w.Expiry = func(string) (time.Time, bool) { return now.Add(time.Hour), true }
	if w.Check(context.Background()) {
		t.Fatalf("token still valid")
	}
	w.Expiry = func(string) (time.Time, bool) { return time.Time{}, false }
	if w.Check(context.Background()) {
		t.Fatalf("unreadable expiry must not end the session")
	}
	w.Tokens = fixedToken("")
	if w.Check(context.Background()) {
		t.Fatalf("no token, nothing to expire")
	}
}
