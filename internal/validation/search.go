package validation

import (
	"strings"
	"sync"
	"time"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
)

const DefaultSearchDelay = 450 * time.Millisecond

// MatchesSearch is a case-insensitive substring match over title,
// description and package name. An empty term matches everything.
func MatchesSearch(r models.ValidationRequest, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, s := range []string{r.Title, r.Description, r.PackageName} {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

// Debouncer delivers the last term typed once input has been quiet for Delay.
type Debouncer struct {
	Delay time.Duration
	Fire  func(term string)

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool
}

func NewDebouncer(delay time.Duration, fire func(string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultSearchDelay
	}
	return &Debouncer{Delay: delay, Fire: fire}
}

// Input restarts the quiet period with term as the pending value.
func (d *Debouncer) Input(term string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.Delay, func() {
		d.mu.Lock()
		current := !d.stopped && d.seq == seq
		d.mu.Unlock()
		if current && d.Fire != nil {
			d.Fire(term)
		}
	})
}

// Stop drops any pending term.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
