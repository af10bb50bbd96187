// Package listview owns the paginated, searchable state of one list screen
// and orchestrates fetch, search, page change and delete against the backend.
package listview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SanmishaTech/jssp-sub001/internal/apiclient"
	"github.com/SanmishaTech/jssp-sub001/internal/domain"
	"github.com/SanmishaTech/jssp-sub001/internal/metrics"
	"github.com/SanmishaTech/jssp-sub001/internal/screen"
	"github.com/SanmishaTech/jssp-sub001/internal/table"
)

var (
	// ErrClosed is returned by operations on a controller that has been torn down.
	ErrClosed = errors.New("listview: controller closed")
	// ErrReload wraps a failed reload after a successful delete.
	ErrReload = errors.New("listview: reload after delete failed")
)

// Backend is the part of the REST client the controller needs.
type Backend interface {
	List(ctx context.Context, token, resource, key string, p apiclient.ListParams) (*apiclient.Page, error)
	Delete(ctx context.Context, token, resource, id string) error
}

// PageResult is one fetched page. It is replaced wholesale on every
// successful load and never modified afterwards.
type PageResult struct {
	Rows       []table.Row
	Pagination apiclient.Pagination
}

// TotalPages returns the number of pages, at least 1.
func (p *PageResult) TotalPages() int {
	if p == nil || p.Pagination.LastPage < 1 {
		return 1
	}
	return p.Pagination.LastPage
}

// State is a snapshot of a controller.
type State struct {
	Query  Query
	Result *PageResult // nil until the first successful load
	Err    string      // set when the last load failed; Result is then the last good page
}

// Controller holds the list state of one screen for one session.
type Controller struct {
	screen  *screen.Screen
	backend Backend
	token   string
	logger  *slog.Logger

	// life is cancelled when the controller is closed; in-flight calls
	// observe it and their completions are discarded.
	life   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	query  Query
	result *PageResult
	errMsg string
	seq    uint64
	closed bool
}

// New creates a controller. parent bounds the controller's lifetime.
func New(parent context.Context, s *screen.Screen, b Backend, token string, logger *slog.Logger) *Controller {
	life, cancel := context.WithCancel(parent)
	return &Controller{
		screen:  s,
		backend: b,
		token:   token,
		logger:  logger.With("screen", s.Slug),
		life:    life,
		cancel:  cancel,
		query:   Query{Page: 1},
	}
}

// Screen returns the screen the controller serves.
func (c *Controller) Screen() *screen.Screen {
	return c.screen
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Query: c.query, Result: c.result, Err: c.errMsg}
}

// Load fetches q and, on success, replaces the held page. On failure the
// previous page is kept and the error flag is set.
func (c *Controller) Load(ctx context.Context, q Query) error {
	q = q.normalize()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.query = q
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	ctx, done := c.scope(ctx)
	defer done()

	page, err := c.backend.List(ctx, c.token, c.screen.Resource, c.screen.Key, apiclient.ListParams{Search: q.Search, Page: q.Page})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if seq != c.seq {
		// A newer load owns the state.
		c.logger.Debug("discarding stale list load", "seq", seq, "current", c.seq)
		return nil
	}

	if err != nil {
		metrics.ListLoaded(c.screen.Slug, false)
		c.errMsg = loadErrorMessage(c.screen, err)
		c.logger.Warn("list load failed", "search", q.Search, "page", q.Page, "error", err)
		return err
	}

	metrics.ListLoaded(c.screen.Slug, true)
	c.result = &PageResult{
		Rows:       table.MapRows(c.screen, page.Items),
		Pagination: page.Pagination,
	}
	c.errMsg = ""
	return nil
}

// Search resets to page 1 and loads the term.
func (c *Controller) Search(ctx context.Context, term string) error {
	return c.Load(ctx, Query{Search: term, Page: 1})
}

// PageChange loads another page of the current search. Pages outside
// [1, total pages] are ignored.
func (c *Controller) PageChange(ctx context.Context, page int) error {
	c.mu.Lock()
	q := c.query
	total := c.result.TotalPages()
	c.mu.Unlock()

	if page < 1 || page > total {
		return nil
	}
	q.Page = page
	return c.Load(ctx, q)
}

// Refresh reloads the current query.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	q := c.query
	c.mu.Unlock()
	return c.Load(ctx, q)
}

// AfterCreate returns to the first page, keeping the search term, so the new
// record is visible when the backend lists newest first.
func (c *Controller) AfterCreate(ctx context.Context) error {
	c.mu.Lock()
	q := c.query
	c.mu.Unlock()
	q.Page = 1
	return c.Load(ctx, q)
}

// Delete removes a record and reloads the current query. When the current
// page no longer exists afterwards, the last page is loaded instead. A failed
// reload is reported wrapped in ErrReload; the record is gone regardless.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	dctx, done := c.scope(ctx)
	err := c.backend.Delete(dctx, c.token, c.screen.Resource, id)
	done()
	if err != nil {
		c.logger.Warn("delete failed", "id", id, "error", err)
		return err
	}
	c.logger.Info("record deleted", "id", id)

	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrReload, err)
	}

	st := c.State()
	if st.Result != nil && len(st.Result.Rows) == 0 && st.Query.Page > st.Result.TotalPages() {
		q := st.Query
		q.Page = st.Result.TotalPages()
		return c.Load(ctx, q)
	}
	return nil
}

// Close tears the controller down. Pending loads are cancelled and their
// completions ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// scope derives a context that ends with either ctx or the controller.
func (c *Controller) scope(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func loadErrorMessage(s *screen.Screen, err error) string {
	switch domain.ErrorCode(err) {
	case domain.EUNAVAILABLE, domain.EINTERNAL, domain.ECANCELED:
		return "Could not load " + s.Title + ". " + domain.GenericMessage
	}
	return domain.ErrorMessage(err)
}
