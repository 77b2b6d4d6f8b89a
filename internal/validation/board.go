package validation

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/models"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
)

const DefaultPageSize = 20

// Filter is everything that selects which requests the board shows.
type Filter struct {
	Tab         Tab
	Search      string
	RequestedBy string
	AssignedTo  string
	PackageID   models.ID
	StartDate   string
	EndDate     string
}

// View is a consistent snapshot of the board.
type View struct {
	Filter Filter
	Page   int
	Meta   models.PageMeta
	Items  []models.ValidationRequest
	Loaded bool
}

// Board is the state of the request list screen: the active filter, the
// current page and the rows last fetched for it.
//
// Every filter or page change bumps a generation counter; a response that
// comes back for an older generation is dropped. After Close no response
// touches the state.
type Board struct {
	list   Lister
	caps   CapabilitySource
	limit  int
	logger *log.Logger

	mu     sync.Mutex
	filter Filter
	page   int
	meta   models.PageMeta
	items  []models.ValidationRequest
	loaded bool
	gen    uint64
	closed bool
}

func NewBoard(l Lister, caps CapabilitySource, limit int, logger *log.Logger) *Board {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	b := &Board{list: l, caps: caps, limit: limit, logger: logger, page: 1}
	b.filter.Tab = DefaultTab(b.capabilities())
	return b
}

func (b *Board) capabilities() permissions.Capabilities {
	if b.caps == nil {
		return permissions.For(nil)
	}
	return b.caps.Capabilities()
}

// SetFilter replaces the filter and goes back to page 1.
func (b *Board) SetFilter(f Filter) error {
	if f.Tab == "" {
		f.Tab = DefaultTab(b.capabilities())
	}
	if !Visible(b.capabilities(), f.Tab) {
		return fmt.Errorf("%w: aba %s", permissions.ErrForbidden, f.Tab)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter = f
	b.page = 1
	b.gen++
	return nil
}

func (b *Board) SetTab(t Tab) error {
	f := b.Filter()
	f.Tab = t
	return b.SetFilter(f)
}

// SetSearch fails when the stored tab is no longer visible to the user,
// e.g. after a permission change.
func (b *Board) SetSearch(term string) error {
	f := b.Filter()
	f.Search = term
	if err := b.SetFilter(f); err != nil {
		b.logger.Printf("[Board] search ignored tab=%s err=%v", f.Tab, err)
		return err
	}
	return nil
}

func (b *Board) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if n != b.page {
		b.page = n
		b.gen++
	}
}

func (b *Board) Filter() Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

func (b *Board) params() api.ListParams {
	f := b.filter
	return api.ListParams{
		Page:        b.page,
		Limit:       b.limit,
		Tab:         string(f.Tab),
		Search:      f.Search,
		RequestedBy: f.RequestedBy,
		AssignedTo:  f.AssignedTo,
		PackageID:   f.PackageID,
		StartDate:   f.StartDate,
		EndDate:     f.EndDate,
	}
}

// Refresh fetches the current page. A failure leaves the previous rows in
// place.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	gen := b.gen
	p := b.params()
	f := b.filter
	b.mu.Unlock()

	page, err := b.list.ListRequests(ctx, p)
	if err != nil {
		return err
	}

	caps := b.capabilities()
	items := make([]models.ValidationRequest, 0, len(page.Items))
	for _, r := range page.Items {
		if Matches(caps, f.Tab, r) && MatchesSearch(r, f.Search) {
			items = append(items, r)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	if gen != b.gen {
		b.logger.Printf("[Board] dropped stale page gen=%d current=%d", gen, b.gen)
		return nil
	}
	b.items = items
	b.meta = page.Meta
	b.loaded = true
	return nil
}

// Remove drops a row from the current page after the backend confirmed a
// transition or deletion. It reports whether the row was present.
func (b *Board) Remove(id models.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.items {
		if r.ID == id {
			b.items = append(b.items[:i:i], b.items[i+1:]...)
			if b.meta.Total > 0 {
				b.meta.Total--
			}
			return true
		}
	}
	return false
}

// Apply reflects a confirmed transition: the echoed record replaces the
// row while it still belongs to the tab, otherwise the row goes away.
func (b *Board) Apply(id models.ID, rec *models.ValidationRequest) {
	if rec == nil {
		b.Remove(id)
		return
	}
	caps := b.capabilities()
	b.mu.Lock()
	tab := b.filter.Tab
	b.mu.Unlock()
	if !Matches(caps, tab, *rec) {
		b.Remove(id)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.items {
		if r.ID == id {
			b.items[i] = *rec
			return
		}
	}
}

func (b *Board) Find(id models.ID) (models.ValidationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.items {
		if r.ID == id {
			return r, true
		}
	}
	return models.ValidationRequest{}, false
}

func (b *Board) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return View{
		Filter: b.filter,
		Page:   b.page,
		Meta:   b.meta,
		Items:  append([]models.ValidationRequest(nil), b.items...),
		Loaded: b.loaded,
	}
}

// Close detaches the board; in-flight responses are ignored afterwards.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
