package service

import (
	"context"
	"errors"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"readingroom/internal/modules/reader/domain"
	"readingroom/internal/modules/reader/dto"
	readerin "readingroom/internal/modules/reader/port/in"
	readerout "readingroom/internal/modules/reader/port/out"
	"readingroom/internal/platform/clock"
	apperrors "readingroom/internal/platform/errors"
)

var _ readerin.ReadingView = (*Controller)(nil)

// Controller is the reading view of one mounted document. It owns the page
// cache, the pager, the estimator and the progress writer of its session.
type Controller struct {
	mu sync.Mutex

	deps     Dependencies
	logger   hclog.Logger
	meta     domain.DocumentMeta
	session  *domain.ReadingSession
	viewport dto.Viewport
	onReady  func(int, domain.PageState)

	mode      domain.RenderMode
	doc       readerout.OpenDocument
	document  domain.Document
	cache     *PageCache
	pager     ViewportPager
	estimator *Estimator
	sync      *ProgressSync
	mailbox   *Mailbox
	viewer    readerout.ViewerSession
	disposer  *Disposer

	settings      domain.Settings
	loadErr       error
	restored      bool
	saveFailed    bool
	lastScrollTop float64
	unmounted     bool
}

func mountController(ctx context.Context, deps Dependencies, meta domain.DocumentMeta, input dto.MountInput) *Controller {
	now := deps.Clock.Now()
	session := domain.NewReadingSession(deps.IDs.New(), meta.ID, now)
	logger := deps.Logger.Named("reader").With("document", meta.ID, "session", session.ID)
	c := &Controller{
		deps:     deps,
		logger:   logger,
		meta:     meta,
		session:  session,
		viewport: input.Viewport,
		onReady:  input.OnPageReady,
		mode:     domain.ModePrimary,
		document: domain.Document{ID: meta.ID, SourceURL: meta.SourceURL},
		mailbox:  &Mailbox{},
		disposer: NewDisposer(logger),
		settings: input.Settings,
	}

	c.restoreProgress(ctx)

	doc, err := deps.Source.Open(ctx, meta.SourceURL)
	if err != nil {
		c.loadErr = err
		logger.Warn("document could not be opened, using basic viewer", "error", err)
		c.enterFallback(ctx)
	} else {
		c.doc = doc
		c.document.PageCount = doc.PageCount()
		c.cache = NewPageCache(doc, logger.Named("pages"), c.pageSettled)
		c.disposer.Add("document", func() {
			if err := doc.Close(); err != nil {
				logger.Warn("close document failed", "error", err)
			}
		})
		c.disposer.Add("renders", c.cache.Close)
	}

	c.disposer.Add("telemetry", deps.Hub.Subscribe(meta.ID, c.mailbox))

	if session.HasUserBook {
		c.sync = NewProgressSync(SyncConfig{
			DocumentID:   meta.ID,
			UserBookID:   session.UserBookID,
			PersistedPct: session.BackendProgressPct,
			Delay:        deps.SyncDelay,
			Writer:       deps.Writer,
			Publisher:    deps.Publisher,
			Clock:        deps.Clock,
			Logger:       logger.Named("sync"),
		})
		c.disposer.Add("debounce", c.sync.Close)
	}

	c.estimator = NewEstimator(session, logger.Named("progress"),
		DirectProvider{Surface: surfaceGeometry{c}},
		RelayProvider{Mailbox: c.mailbox},
		&TimeProvider{Session: session},
	)

	if c.cache != nil {
		c.mu.Lock()
		c.loadMissingLocked(1)
		c.mu.Unlock()
	}
	if deps.PollInterval > 0 {
		c.startPolling()
	}
	logger.Info("reading view mounted", "mode", c.mode, "pages", c.document.PageCount, "user_book", session.HasUserBook)
	return c
}

// restoreProgress seeds the session from the backend and durable storage. The
// stored value wins for display because it is written on every accepted sample;
// the sync writer still starts from what the backend holds.
func (c *Controller) restoreProgress(ctx context.Context) {
	progress, ok, err := c.deps.Progress.UserProgress(ctx, c.meta.ID)
	switch {
	case err != nil:
		c.logger.Warn("backend progress unavailable", "error", err)
	case ok:
		c.session.UserBookID = progress.UserBookID
		c.session.HasUserBook = true
		c.session.BackendProgressPct = domain.Clamp(progress.ProgressPct)
		c.session.SeedProgress(progress.ProgressPct)
	}
	if pct, ok, err := readStored(ctx, c.deps.Store, domain.ProgressKey(c.meta.ID)); err != nil {
		c.logger.Warn("stored progress unreadable", "error", err)
	} else if ok {
		c.session.SeedProgress(pct)
	}
	if offset, ok, err := readStored(ctx, c.deps.Store, domain.PositionKey(c.meta.ID)); err != nil {
		c.logger.Warn("stored position unreadable", "error", err)
	} else if ok {
		c.session.SavedScrollOffset = &offset
	}
}

func (c *Controller) startPolling() {
	var (
		mu      sync.Mutex
		timer   clock.Timer
		stopped bool
	)
	var arm func()
	arm = func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		timer = c.deps.Clock.AfterFunc(c.deps.PollInterval, func() {
			c.Poll(c.deps.Clock.Now())
			arm()
		})
	}
	arm()
	c.disposer.Add("poll", func() {
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
	})
}

// SurfaceReady applies the saved scroll offset, once per mount.
func (c *Controller) SurfaceReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted || c.restored || c.mode != domain.ModePrimary {
		return
	}
	c.restored = true
	if c.session.SavedScrollOffset == nil {
		return
	}
	offset := *c.session.SavedScrollOffset
	c.viewport.ScrollTo(offset)
	c.lastScrollTop = offset
	c.logger.Debug("scroll offset restored", "offset", offset)
}

// Scrolled handles user input on the scroll container.
func (c *Controller) Scrolled(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return
	}
	c.session.Touch(now)
	if c.mode == domain.ModePrimary && c.cache != nil {
		if g, err := c.viewport.Geometry(); err == nil {
			c.loadMissingLocked(domain.CurrentPage(g, c.viewport.PageBounds(), c.document.PageCount))
		}
	}
	c.tickLocked(now)
}

// Poll is the periodic tick for relayed and time based signals.
func (c *Controller) Poll(now time.Time) {
	c.mu.Lock()
	viewer, unmounted := c.viewer, c.unmounted
	c.mu.Unlock()
	if unmounted {
		return
	}
	if viewer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.pollTimeout())
		msg, ok, err := viewer.Telemetry(ctx)
		cancel()
		switch {
		case err != nil:
			c.logger.Debug("viewer telemetry failed", "error", err)
		case ok:
			if err := msg.Validate(); err != nil {
				c.logger.Debug("viewer telemetry dropped", "error", err)
			} else {
				c.mailbox.Put(msg)
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return
	}
	c.tickLocked(now)
}

func (c *Controller) pollTimeout() time.Duration {
	if c.deps.PollInterval > 0 {
		return c.deps.PollInterval
	}
	return time.Second
}

func (c *Controller) tickLocked(now time.Time) {
	decision, ok := c.estimator.Tick(now)
	if !ok || decision.Estimated {
		return
	}
	if decision.Sample.HasOffset() {
		c.lastScrollTop = decision.Sample.Geometry.ScrollTop
	}
	if !decision.Accepted {
		return
	}
	ctx := context.Background()
	if decision.Sample.HasOffset() {
		if err := writeStored(ctx, c.deps.Store, domain.PositionKey(c.meta.ID), decision.Sample.Geometry.ScrollTop); err != nil {
			c.logger.Warn("store position failed", "error", err)
		}
	}
	if err := writeStored(ctx, c.deps.Store, domain.ProgressKey(c.meta.ID), decision.Percent); err != nil {
		c.logger.Warn("store progress failed", "error", err)
	}
	if c.sync != nil {
		c.sync.Schedule(decision.Percent)
	}
}

func (c *Controller) loadMissingLocked(current int) {
	for _, n := range c.pager.Update(current, c.document.PageCount, c.cache.State) {
		c.cache.Prefetch(n)
	}
}

func (c *Controller) pageSettled(page int, state domain.PageState) {
	if c.onReady != nil {
		c.onReady(page, state)
	}
}

// SavePosition stores the scroll offset and progress now.
func (c *Controller) SavePosition(ctx context.Context) (dto.SavedPosition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return dto.SavedPosition{}, apperrors.ErrNotMounted
	}
	scrollTop := c.lastScrollTop
	if c.mode == domain.ModePrimary {
		if g, err := c.viewport.Geometry(); err == nil {
			scrollTop = g.ScrollTop
		}
	}
	saved := dto.SavedPosition{
		DocumentID:  c.meta.ID,
		ScrollTop:   scrollTop,
		Page:        c.pager.Current(),
		ProgressPct: c.session.CurrentProgressPct,
	}
	err := errors.Join(
		writeStored(ctx, c.deps.Store, domain.PositionKey(c.meta.ID), scrollTop),
		writeStored(ctx, c.deps.Store, domain.ProgressKey(c.meta.ID), saved.ProgressPct),
	)
	c.saveFailed = err != nil
	if err != nil {
		c.logger.Warn("save position failed", "error", err)
		return dto.SavedPosition{}, err
	}
	c.logger.Info("position saved", "offset", scrollTop, "page", saved.Page, "pct", saved.ProgressPct)
	return saved, nil
}

// MarkFinished sets progress to 100 and writes it to the backend immediately.
func (c *Controller) MarkFinished(ctx context.Context) error {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return apperrors.ErrNotMounted
	}
	c.estimator.Override(100)
	if err := writeStored(ctx, c.deps.Store, domain.ProgressKey(c.meta.ID), 100); err != nil {
		c.logger.Warn("store progress failed", "error", err)
	}
	progressSync := c.sync
	c.mu.Unlock()

	if progressSync == nil {
		return apperrors.ErrUnknownUserBook
	}
	return progressSync.Flush(ctx, 100)
}

// UseBasicViewer switches to fallback mode for the rest of the session.
func (c *Controller) UseBasicViewer(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return apperrors.ErrNotMounted
	}
	if c.mode == domain.ModeFallback {
		return nil
	}
	if c.cache != nil {
		c.cache.Close()
	}
	c.enterFallback(ctx)
	return nil
}

func (c *Controller) enterFallback(ctx context.Context) {
	c.mode = domain.ModeFallback
	if c.deps.Viewer == nil {
		return
	}
	viewer, err := c.deps.Viewer.Open(ctx, c.meta.ID, c.meta.SourceURL)
	if err != nil {
		c.logger.Warn("basic viewer could not be opened", "error", err)
		return
	}
	c.viewer = viewer
	c.disposer.Add("viewer", func() {
		if err := viewer.Close(); err != nil {
			c.logger.Debug("close viewer failed", "error", err)
		}
	})
}

func (c *Controller) ApplySettings(settings domain.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = settings
}

func (c *Controller) Relay(msg domain.TelemetryMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	c.mailbox.Put(msg)
	return nil
}

// Page describes one page for drawing. Unrendered pages report their height so
// the host can reserve space.
func (c *Controller) Page(n int) dto.PageView {
	c.mu.Lock()
	cache := c.cache
	c.mu.Unlock()
	view := dto.PageView{Number: n, State: domain.PageIdle, Rows: 1}
	if cache == nil {
		return view
	}
	if desc, err := cache.Descriptor(context.Background(), n); err == nil {
		view.Rows = desc.Rows()
	}
	if entry, ok := cache.Entry(n); ok {
		view.State = entry.State
		if entry.Surface != nil {
			view.Lines = entry.Surface.Lines
			view.Rows = max(view.Rows, len(entry.Surface.Lines))
		}
	}
	return view
}

func (c *Controller) Snapshot() dto.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := dto.Snapshot{
		SessionID:      c.session.ID,
		DocumentID:     c.meta.ID,
		Title:          c.meta.Title,
		Byline:         c.meta.Byline(),
		SourceURL:      c.meta.SourceURL,
		Mode:           c.mode,
		State:          c.estimator.State(),
		ProgressPct:    c.session.CurrentProgressPct,
		EstimatedPct:   c.session.EstimatedPct,
		Estimated:      c.estimator.State() == domain.StateTimeEstimated,
		CurrentPage:    c.pager.Current(),
		PageCount:      c.document.PageCount,
		AccessMisses:   c.estimator.AccessMisses(),
		SaveFailed:     c.saveFailed,
		Settings:       c.settings,
		HasUserBook:    c.session.HasUserBook,
		UserBookID:     c.session.UserBookID,
		RestoredOffset: c.restored && c.session.SavedScrollOffset != nil,
	}
	if c.sync != nil {
		snap.SyncPending = c.sync.Pending()
	}
	if c.loadErr != nil {
		snap.LoadError = c.loadErr.Error()
	}
	return snap
}

// Unmount releases every resource acquired during mount. Later calls are no-ops.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return
	}
	c.unmounted = true
	pct := c.session.CurrentProgressPct
	c.mu.Unlock()
	c.disposer.Dispose()
	c.logger.Info("reading view unmounted", "pct", pct)
}

// surfaceGeometry is the direct signal source: the viewport in primary mode. In
// fallback mode the document lives in another process and is never readable.
// It is only called with c.mu held.
type surfaceGeometry struct {
	c *Controller
}

func (s surfaceGeometry) Geometry() (domain.Geometry, error) {
	if s.c.mode == domain.ModeFallback {
		return domain.Geometry{}, &domain.AccessError{Surface: "basic-viewer"}
	}
	return s.c.viewport.Geometry()
}
