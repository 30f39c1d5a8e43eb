// Package listview drives a paginated, sorted, filterable list against a
// Fetcher. One Controller backs one visible list: it owns the request
// state, issues one fetch per change, and applies only the response to
// the most recent fetch.
package listview

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/HerbHall/newslens/internal/listing"
)

// DefaultDebounce is how long query input must be idle before it applies.
const DefaultDebounce = 500 * time.Millisecond

// State is the lifecycle state of a Controller.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Fetcher loads one page for a request state.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, req listing.RequestState) (listing.Page[T], error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[T any] func(ctx context.Context, req listing.RequestState) (listing.Page[T], error)

func (f FetcherFunc[T]) Fetch(ctx context.Context, req listing.RequestState) (listing.Page[T], error) {
	return f(ctx, req)
}

// View is a point-in-time copy of a Controller's state.
type View[T any] struct {
	State   State
	Request listing.RequestState
	Items   []T
	Err     error // set in StateFailed only
}

// Loading reports whether a fetch is outstanding.
func (v View[T]) Loading() bool { return v.State == StateLoading }

// Config configures a Controller.
type Config struct {
	PageSize int           // listing.DefaultPageSize when zero
	Debounce time.Duration // DefaultDebounce when zero
	Logger   *zap.Logger
}

// Controller is the state machine behind one list view. All methods are
// safe for concurrent use.
type Controller[T any] struct {
	fetcher  Fetcher[T]
	debounce time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	base      context.Context
	stop      context.CancelFunc
	started   bool
	closed    bool
	req       listing.RequestState
	state     State
	items     []T
	err       error
	gen       uint64
	cancel    context.CancelFunc
	timer     *time.Timer
	querySeq  uint64
	listeners []func(View[T])
}

// New returns an idle Controller. No fetch is issued until Start.
func New[T any](fetcher Fetcher[T], cfg Config) *Controller[T] {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	req := listing.DefaultRequestState()
	if cfg.PageSize > 0 {
		req.PageSize = cfg.PageSize
	}
	return &Controller[T]{
		fetcher:  fetcher,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		req:      req,
	}
}

// OnChange registers fn to receive a View after every state change.
// fn runs on the goroutine that caused the change and must not block.
// Views from concurrent changes may arrive out of order; View always
// returns the latest state.
func (c *Controller[T]) OnChange(fn func(View[T])) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Start issues the first fetch. Fetches run under a context derived from
// ctx.
func (c *Controller[T]) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.base, c.stop = context.WithCancel(ctx)
	c.fetchLocked()
	c.unlockNotify()
}

// SetPageIndex moves to page idx (1-based). Out-of-range pages are
// requested as-is and come back empty.
func (c *Controller[T]) SetPageIndex(idx int) {
	if idx < 1 {
		idx = 1
	}
	c.update(func(r *listing.RequestState) { r.PageIndex = idx })
}

// SetPageSize changes the page size, moving to the page that contains
// the first row currently shown, clamped to the last page of the known
// total.
func (c *Controller[T]) SetPageSize(size int) {
	if size <= 0 {
		return
	}
	c.update(func(r *listing.RequestState) {
		first := (r.PageIndex - 1) * r.PageSize
		idx := first/size + 1
		if last := listing.LastPage(r.Total, size); idx > last {
			idx = last
		}
		r.PageSize = size
		r.PageIndex = idx
	})
}

// SetSort changes the ordering.
func (c *Controller[T]) SetSort(s listing.Sort) {
	c.update(func(r *listing.RequestState) { r.Sort = s })
}

// SetQuery schedules q to apply once input has been idle for the
// debounce delay. A query applies only when it is empty or longer than
// one character, and applying it returns to the first page.
func (c *Controller[T]) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.querySeq++
	seq := c.querySeq
	c.timer = time.AfterFunc(c.debounce, func() { c.applyQuery(seq, q) })
}

func (c *Controller[T]) applyQuery(seq uint64, q string) {
	c.mu.Lock()
	if c.closed || seq != c.querySeq {
		c.mu.Unlock()
		return
	}
	if n := utf8.RuneCountInString(q); n == 1 {
		c.mu.Unlock()
		return
	}
	c.req.Query = q
	c.req.PageIndex = 1
	if c.started {
		c.fetchLocked()
	}
	c.unlockNotify()
}

// Refresh refetches the current page.
func (c *Controller[T]) Refresh() {
	c.update(func(*listing.RequestState) {})
}

// Close cancels any outstanding fetch and pending query. Responses that
// arrive afterwards are discarded.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.stop != nil {
		c.stop()
	}
	c.listeners = nil
}

// View returns the current state.
func (c *Controller[T]) View() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller[T]) update(fn func(r *listing.RequestState)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn(&c.req)
	if c.started {
		c.fetchLocked()
	}
	c.unlockNotify()
}

// fetchLocked starts a fetch for the current request, superseding any
// fetch in flight.
func (c *Controller[T]) fetchLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	c.state = StateLoading
	c.err = nil
	req := c.req

	go c.run(ctx, gen, req)
}

func (c *Controller[T]) run(ctx context.Context, gen uint64, req listing.RequestState) {
	page, err := c.fetcher.Fetch(ctx, req)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("dropped stale list response", zap.Uint64("generation", gen))
		return
	}
	c.cancel()
	c.cancel = nil

	if err != nil {
		c.state = StateFailed
		c.err = err
		c.items = nil
		c.logger.Warn("list fetch failed", zap.Error(err))
	} else {
		c.state = StateReady
		c.items = page.Items
		c.req.Total = page.Total
	}
	c.unlockNotify()
}

func (c *Controller[T]) viewLocked() View[T] {
	items := make([]T, len(c.items))
	copy(items, c.items)
	return View[T]{
		State:   c.state,
		Request: c.req,
		Items:   items,
		Err:     c.err,
	}
}

// unlockNotify releases c.mu and then hands the new view to listeners.
func (c *Controller[T]) unlockNotify() {
	v := c.viewLocked()
	listeners := append([]func(View[T]){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(v)
	}
}
