package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	hclog "github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"readingroom/internal/modules/reader/domain"
	readerout "readingroom/internal/modules/reader/port/out"
)

var ErrCacheClosed = errors.New("page cache is closed")

// PageCache owns the rendered pages of one open document. At most one render per
// page number is in flight; a failed page is retried on its next request.
type PageCache struct {
	mu          sync.Mutex
	doc         readerout.OpenDocument
	entries     map[int]*domain.PageEntry
	descriptors map[int]domain.PageDescriptor
	group       singleflight.Group
	closed      bool
	onReady     func(page int, state domain.PageState)
	logger      hclog.Logger
}

func NewPageCache(doc readerout.OpenDocument, logger hclog.Logger, onReady func(int, domain.PageState)) *PageCache {
	return &PageCache{
		doc:         doc,
		entries:     map[int]*domain.PageEntry{},
		descriptors: map[int]domain.PageDescriptor{},
		onReady:     onReady,
		logger:      logger,
	}
}

// Request returns the rendered page, starting a render when none is ready or in
// flight. ctx only bounds the wait; the render itself outlives it.
func (c *PageCache) Request(ctx context.Context, n int) (domain.Surface, error) {
	if n < 1 || n > c.doc.PageCount() {
		return domain.Surface{}, &domain.PageError{Page: n, Err: fmt.Errorf("page out of range 1..%d", c.doc.PageCount())}
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.Surface{}, ErrCacheClosed
	}
	entry := c.entryLocked(n)
	if entry.State == domain.PageReady {
		surface := *entry.Surface
		c.mu.Unlock()
		return surface, nil
	}
	entry.State = domain.PageLoading
	c.mu.Unlock()

	renderCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.Itoa(n), func() (any, error) {
		return c.render(renderCtx, n)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Surface{}, res.Err
		}
		return res.Val.(domain.Surface), nil
	case <-ctx.Done():
		return domain.Surface{}, ctx.Err()
	}
}

// Prefetch requests a page without waiting; the result reaches the ready hook.
func (c *PageCache) Prefetch(n int) {
	go func() {
		_, _ = c.Request(context.Background(), n)
	}()
}

func (c *PageCache) State(n int) domain.PageState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[n]; ok {
		return entry.State
	}
	return domain.PageIdle
}

func (c *PageCache) Entry(n int) (domain.PageEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[n]
	if !ok {
		return domain.PageEntry{}, false
	}
	return *entry, true
}

// Descriptor returns page geometry, memoized per page.
func (c *PageCache) Descriptor(ctx context.Context, n int) (domain.PageDescriptor, error) {
	c.mu.Lock()
	desc, ok := c.descriptors[n]
	c.mu.Unlock()
	if ok {
		return desc, nil
	}
	desc, err := c.doc.Page(ctx, n)
	if err != nil {
		return domain.PageDescriptor{}, err
	}
	c.mu.Lock()
	c.descriptors[n] = desc
	c.mu.Unlock()
	return desc, nil
}

// Evict keeps everything; a document is bounded by its page count.
func (c *PageCache) Evict() {}

// Close abandons in-flight renders. Their results are discarded and the ready
// hook is not called.
func (c *PageCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *PageCache) entryLocked(n int) *domain.PageEntry {
	entry, ok := c.entries[n]
	if !ok {
		entry = &domain.PageEntry{Number: n, State: domain.PageIdle}
		c.entries[n] = entry
	}
	return entry
}

func (c *PageCache) render(ctx context.Context, n int) (domain.Surface, error) {
	// A render that finished just before this call was joined is already cached.
	c.mu.Lock()
	if entry := c.entries[n]; entry != nil && entry.State == domain.PageReady {
		surface := *entry.Surface
		c.mu.Unlock()
		return surface, nil
	}
	c.mu.Unlock()

	surface, err := c.renderPage(ctx, n)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.Surface{}, ErrCacheClosed
	}
	entry := c.entryLocked(n)
	state := domain.PageReady
	if err != nil {
		state = domain.PageFailed
		entry.State = state
		entry.Surface = nil
	} else {
		entry.State = state
		entry.Surface = &surface
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("page render failed", "page", n, "error", err)
	}
	if c.onReady != nil {
		c.onReady(n, state)
	}
	return surface, err
}

func (c *PageCache) renderPage(ctx context.Context, n int) (domain.Surface, error) {
	desc, err := c.Descriptor(ctx, n)
	if err != nil {
		return domain.Surface{}, asPageError(n, err)
	}
	surface, err := c.doc.Render(ctx, desc)
	if err != nil {
		return domain.Surface{}, asPageError(n, err)
	}
	return surface, nil
}

func asPageError(n int, err error) error {
	var pageErr *domain.PageError
	if errors.As(err, &pageErr) {
		return err
	}
	return &domain.PageError{Page: n, Err: err}
}
