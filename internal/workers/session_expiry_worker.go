package workers

import (
	"context"
	"log"
	"time"
)

// TokenSource exposes the stored session token.
type TokenSource interface {
	Load(ctx context.Context) (string, error)
}

// SessionExpiryWorker re-verifies the session with the backend once the
// stored token's expiry claim has passed. The claim alone never discards
// the token; the backend's answer to Verify decides.
type SessionExpiryWorker struct {
	Tokens          TokenSource
	Expiry          func(token string) (time.Time, bool)
	Verify          func(ctx context.Context) error
	CheckIntervalMs int // default: 60000
	Now             func() time.Time
}

func (w *SessionExpiryWorker) Start(ctx context.Context) {
	if w.CheckIntervalMs <= 0 {
		w.CheckIntervalMs = 60000
	}

	ticker := time.NewTicker(time.Duration(w.CheckIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	log.Printf("[SessionExpiryWorker] started (interval=%dms)", w.CheckIntervalMs)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[SessionExpiryWorker] stopped")
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check calls Verify when the token is past its expiry. Tokens without a
// readable expiry are left alone. It reports whether Verify was called.
func (w *SessionExpiryWorker) Check(ctx context.Context) bool {
	tok, err := w.Tokens.Load(ctx)
	if err != nil {
		log.Printf("[SessionExpiryWorker] error loading token: %v", err)
		return false
	}
	if tok == "" || w.Expiry == nil {
		return false
	}
	exp, ok := w.Expiry(tok)
	if !ok {
		return false
	}
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	if now.Before(exp) {
		return false
	}
	log.Printf("[SessionExpiryWorker] token expiry claim passed at %s, re-verifying", exp.Format(time.RFC3339))
	if w.Verify != nil {
		if err := w.Verify(ctx); err != nil {
			log.Printf("[SessionExpiryWorker] verify error: %v", err)
		}
	}
	return true
}
