package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"readingroom/internal/modules/reader/domain"
	readerout "readingroom/internal/modules/reader/port/out"
	"readingroom/internal/modules/reader/service"
	"readingroom/internal/platform/clock/clocktest"
	"readingroom/internal/platform/logging"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeDoc struct {
	pages   int
	gate    chan struct{}
	renders atomic.Int32
	closed  atomic.Bool

	mu    sync.Mutex
	fails map[int]int
}

func newFakeDoc(pages int) *fakeDoc {
	return &fakeDoc{pages: pages, fails: map[int]int{}}
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) Page(_ context.Context, n int) (domain.PageDescriptor, error) {
	return domain.PageDescriptor{Number: n, Width: 612 * domain.RenderScale, Height: 792 * domain.RenderScale}, nil
}

func (d *fakeDoc) Render(_ context.Context, desc domain.PageDescriptor) (domain.Surface, error) {
	d.renders.Add(1)
	if d.gate != nil {
		<-d.gate
	}
	d.mu.Lock()
	if d.fails[desc.Number] > 0 {
		d.fails[desc.Number]--
		d.mu.Unlock()
		return domain.Surface{}, errors.New("corrupt content stream")
	}
	d.mu.Unlock()
	return domain.Surface{Number: desc.Number, Width: desc.Width, Height: desc.Height, Lines: []string{fmt.Sprintf("page %d", desc.Number)}}, nil
}

func (d *fakeDoc) Close() error {
	d.closed.Store(true)
	return nil
}

type fakeSource struct {
	doc    *fakeDoc
	err    error
	opened []string
}

func (s *fakeSource) Open(_ context.Context, url string) (readerout.OpenDocument, error) {
	s.opened = append(s.opened, url)
	if s.err != nil {
		return nil, &domain.LoadError{URL: url, Err: s.err}
	}
	return s.doc, nil
}

type memStore struct {
	mu      sync.Mutex
	values  map[string]string
	failSet bool
}

func newMemStore(values map[string]string) *memStore {
	if values == nil {
		values = map[string]string{}
	}
	return &memStore{values: values}
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return errors.New("disk full")
	}
	s.values[key] = value
	return nil
}

func (s *memStore) value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

type persistCall struct {
	UserBookID int
	Pct        int
}

type fakeWriter struct {
	mu    sync.Mutex
	calls []persistCall
	err   error
}

func (w *fakeWriter) Persist(_ context.Context, userBookID, pct int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, persistCall{UserBookID: userBookID, Pct: pct})
	return w.err
}

func (w *fakeWriter) Calls() []persistCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]persistCall(nil), w.calls...)
}

type fakeProgress struct {
	byDocument map[string]domain.UserProgress
}

func (p fakeProgress) UserProgress(_ context.Context, documentID string) (domain.UserProgress, bool, error) {
	progress, ok := p.byDocument[documentID]
	return progress, ok, nil
}

type fakeCatalog struct{}

func (fakeCatalog) DocumentMeta(_ context.Context, documentID string) (domain.DocumentMeta, error) {
	return domain.DocumentMeta{
		ID:          documentID,
		Title:       "Doc " + documentID,
		SourceURL:   "https://books.example/" + documentID + ".pdf",
		AuthorNames: []string{"A. Author"},
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (p *recordingPublisher) Publish(event domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []domain.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ProgressEvent(nil), p.events...)
}

type fakeViewport struct {
	mu         sync.Mutex
	geometry   domain.Geometry
	err        error
	bounds     []domain.PageBounds
	scrolledTo []float64
}

func (v *fakeViewport) Geometry() (domain.Geometry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.geometry, v.err
}

func (v *fakeViewport) PageBounds() []domain.PageBounds {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bounds
}

func (v *fakeViewport) ScrollTo(offset float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrolledTo = append(v.scrolledTo, offset)
	v.geometry.ScrollTop = offset
}

func (v *fakeViewport) set(g domain.Geometry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.geometry = g
}

type fakeViewer struct {
	opened  []string
	err     error
	session *fakeViewerSession
}

func (v *fakeViewer) Open(_ context.Context, _ string, url string) (readerout.ViewerSession, error) {
	v.opened = append(v.opened, url)
	if v.err != nil {
		return nil, v.err
	}
	v.session = &fakeViewerSession{}
	return v.session, nil
}

type fakeViewerSession struct {
	mu      sync.Mutex
	pending []domain.TelemetryMessage
	closed  bool
}

func (s *fakeViewerSession) push(msg domain.TelemetryMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, msg)
}

func (s *fakeViewerSession) Telemetry(context.Context) (domain.TelemetryMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return domain.TelemetryMessage{}, false, nil
	}
	msg := s.pending[0]
	s.pending = s.pending[1:]
	return msg, true, nil
}

func (s *fakeViewerSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeViewerSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fixedIDs struct{}

func (fixedIDs) New() string { return "session-1" }

type harness struct {
	clock     *clocktest.Manual
	source    *fakeSource
	doc       *fakeDoc
	store     *memStore
	writer    *fakeWriter
	publisher *recordingPublisher
	viewer    *fakeViewer
	hub       *service.TelemetryHub
	viewport  *fakeViewport
	progress  fakeProgress
	svc       *service.ReaderService
}

type harnessOption func(*harness, *service.Dependencies)

func newHarness(opts ...harnessOption) *harness {
	doc := newFakeDoc(10)
	h := &harness{
		clock:     clocktest.NewManual(epoch),
		source:    &fakeSource{doc: doc},
		doc:       doc,
		store:     newMemStore(nil),
		writer:    &fakeWriter{},
		publisher: &recordingPublisher{},
		viewer:    &fakeViewer{},
		hub:       service.NewTelemetryHub(),
		viewport:  &fakeViewport{},
		progress: fakeProgress{byDocument: map[string]domain.UserProgress{
			"42": {UserBookID: 7, ProgressPct: 0},
		}},
	}
	deps := service.Dependencies{
		Source:    h.source,
		Store:     h.store,
		Writer:    h.writer,
		Catalog:   fakeCatalog{},
		Publisher: h.publisher,
		Viewer:    h.viewer,
		Hub:       h.hub,
		Clock:     h.clock,
		IDs:       fixedIDs{},
		Logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(h, &deps)
	}
	deps.Progress = h.progress
	h.svc = service.NewReaderService(deps)
	return h
}

func withPollInterval(d time.Duration) harnessOption {
	return func(_ *harness, deps *service.Dependencies) { deps.PollInterval = d }
}
