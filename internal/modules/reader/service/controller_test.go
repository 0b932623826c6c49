package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingroom/internal/modules/reader/domain"
	"readingroom/internal/modules/reader/dto"
	"readingroom/internal/modules/reader/service"
	apperrors "readingroom/internal/platform/errors"
)

func mount(t *testing.T, h *harness, documentID string) *service.Controller {
	t.Helper()
	c, err := h.svc.Mount(context.Background(), dto.MountInput{DocumentID: documentID, Viewport: h.viewport})
	require.NoError(t, err)
	t.Cleanup(c.Unmount)
	return c
}

func TestScrollToNinetyPercentPersistsOnceWithinDebounce(t *testing.T) {
	t.Parallel()
	h := newHarness()
	c := mount(t, h, "42")

	h.viewport.set(domain.Geometry{ScrollTop: 8100, ScrollHeight: 10000, ClientHeight: 1000})
	c.Scrolled(h.clock.Now())

	snap := c.Snapshot()
	assert.InDelta(t, 90, snap.ProgressPct, 1e-9)
	assert.Equal(t, domain.StateDirectMeasurement, snap.State)
	assert.Equal(t, 9, snap.CurrentPage)
	stored, ok := h.store.value(domain.PositionKey("42"))
	require.True(t, ok, "offset is stored immediately")
	assert.Equal(t, "8100", stored)
	assert.Empty(t, h.writer.Calls())

	h.clock.Advance(1000 * time.Millisecond)
	assert.Equal(t, []persistCall{{UserBookID: 7, Pct: 90}}, h.writer.Calls())
	assert.Equal(t, []domain.ProgressEvent{{DocumentID: "42", ProgressPct: 90}}, h.publisher.Events())

	h.clock.Advance(10 * time.Second)
	assert.Len(t, h.publisher.Events(), 1)
}

func TestSmallScrollJitterNeverSchedulesWrite(t *testing.T) {
	t.Parallel()
	h := newHarness()
	c := mount(t, h, "42")

	h.viewport.set(domain.Geometry{ScrollTop: 4000, ScrollHeight: 10000, ClientHeight: 1000})
	c.Scrolled(h.clock.Now())
	h.clock.Advance(time.Second)
	require.Len(t, h.writer.Calls(), 1)

	h.viewport.set(domain.Geometry{ScrollTop: 4030, ScrollHeight: 10000, ClientHeight: 1000})
	c.Scrolled(h.clock.Now())
	assert.False(t, c.Snapshot().SyncPending)
	h.clock.Advance(time.Second)
	assert.Len(t, h.writer.Calls(), 1)
}

func TestSavedOffsetIsRestoredOnce(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.store.values[domain.PositionKey("42")] = "1200"
	h.store.values[domain.ProgressKey("42")] = "37"
	c := mount(t, h, "42")

	assert.Equal(t, 37.0, c.Snapshot().ProgressPct)
	c.SurfaceReady()
	c.SurfaceReady()
	assert.Equal(t, []float64{1200}, h.viewport.scrolledTo)
	assert.True(t, c.Snapshot().RestoredOffset)
}

func TestStoredProgressAheadOfBackendIsStillPersisted(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.store.values[domain.ProgressKey("42")] = "60"
	c := mount(t, h, "42")
	require.Equal(t, 60.0, c.Snapshot().ProgressPct)

	h.viewport.set(domain.Geometry{ScrollTop: 6300, ScrollHeight: 10000, ClientHeight: 1000})
	c.Scrolled(h.clock.Now())
	h.viewport.set(domain.Geometry{ScrollTop: 5400, ScrollHeight: 10000, ClientHeight: 1000})
	c.Scrolled(h.clock.Now())
	h.clock.Advance(2 * time.Second)

	assert.InDelta(t, 60, c.Snapshot().ProgressPct, 1e-9)
	assert.Equal(t, []persistCall{{UserBookID: 7, Pct: 60}}, h.writer.Calls())
}

func TestFailedPageIsRetriedWhenScrolledIntoViewAgain(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.doc.fails[2] = 1
	var mu sync.Mutex
	var settled []domain.PageState
	c, err := h.svc.Mount(context.Background(), dto.MountInput{
		DocumentID: "42",
		Viewport:   h.viewport,
		OnPageReady: func(page int, state domain.PageState) {
			if page != 2 {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			settled = append(settled, state)
		},
	})
	require.NoError(t, err)
	defer c.Unmount()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(settled) == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, domain.PageFailed, c.Page(2).State)

	c.Scrolled(h.clock.Now())
	require.Eventually(t, func() bool { return c.Page(2).State == domain.PageReady }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"page 2"}, c.Page(2).Lines)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.PageState{domain.PageFailed, domain.PageReady}, settled)
}

func TestMountPrefetchesFirstPages(t *testing.T) {
	t.Parallel()
	h := newHarness()
	var mu sync.Mutex
	ready := map[int]domain.PageState{}
	c, err := h.svc.Mount(context.Background(), dto.MountInput{
		DocumentID: "42",
		Viewport:   h.viewport,
		OnPageReady: func(page int, state domain.PageState) {
			mu.Lock()
			defer mu.Unlock()
			ready[page] = state
		},
	})
	require.NoError(t, err)
	defer c.Unmount()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ready) == 3
	}, time.Second, time.Millisecond)
	page := c.Page(2)
	assert.Equal(t, domain.PageReady, page.State)
	assert.Equal(t, []string{"page 2"}, page.Lines)
	assert.Equal(t, 66, c.Page(9).Rows)
	assert.Equal(t, domain.PageIdle, c.Page(9).State)
}

func TestLoadErrorSwitchesToFallbackAndRelaysTelemetry(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.source.err = errors.New("unsupported format")
	c := mount(t, h, "42")

	snap := c.Snapshot()
	assert.Equal(t, domain.ModeFallback, snap.Mode)
	assert.Contains(t, snap.LoadError, "unsupported format")
	assert.Equal(t, []string{"https://books.example/42.pdf"}, h.viewer.opened)
	require.NotNil(t, h.viewer.session)

	c.Poll(h.clock.Now())
	assert.Equal(t, 1, c.Snapshot().AccessMisses)
	assert.Equal(t, domain.StateUnknown, c.Snapshot().State)

	h.viewer.session.push(domain.TelemetryMessage{Type: domain.TelemetryScroll, ScrollTop: 450, ScrollHeight: 1000, ClientHeight: 100})
	c.Poll(h.clock.Now())
	snap = c.Snapshot()
	assert.Equal(t, domain.StateMessageRelayed, snap.State)
	assert.InDelta(t, 50, snap.ProgressPct, 1e-9)

	delivered, err := h.svc.Relay(domain.TelemetryEnvelope{
		DocumentID: "42",
		Message:    domain.TelemetryMessage{Type: domain.TelemetryScroll, ScrollTop: 900, ScrollHeight: 1000, ClientHeight: 100},
	})
	require.NoError(t, err)
	assert.True(t, delivered)
	c.Poll(h.clock.Now())
	assert.InDelta(t, 100, c.Snapshot().ProgressPct, 1e-9)

	h.clock.Advance(time.Second)
	assert.Equal(t, []persistCall{{UserBookID: 7, Pct: 100}}, h.writer.Calls())
}

func TestUseBasicViewerIsPermanent(t *testing.T) {
	t.Parallel()
	h := newHarness()
	c := mount(t, h, "42")
	require.NoError(t, c.UseBasicViewer(context.Background()))
	require.NoError(t, c.UseBasicViewer(context.Background()))
	assert.Equal(t, domain.ModeFallback, c.Snapshot().Mode)
	assert.Len(t, h.viewer.opened, 1)

	h.viewport.set(domain.Geometry{ScrollTop: 500, ScrollHeight: 1000, ClientHeight: 100})
	c.Scrolled(h.clock.Now())
	assert.Equal(t, domain.StateUnknown, c.Snapshot().State, "viewport is not read in fallback mode")
}

func TestSavePositionReportsStorageFailure(t *testing.T) {
	t.Parallel()
	h := newHarness()
	c := mount(t, h, "42")
	h.viewport.set(domain.Geometry{ScrollTop: 2500, ScrollHeight: 10000, ClientHeight: 1000})

	saved, err := c.SavePosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2500.0, saved.ScrollTop)
	stored, _ := h.store.value(domain.PositionKey("42"))
	assert.Equal(t, "2500", stored)
	assert.False(t, c.Snapshot().SaveFailed)

	h.store.failSet = true
	_, err = c.SavePosition(context.Background())
	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.True(t, c.Snapshot().SaveFailed)
}

func TestMarkFinishedFlushesHundred(t *testing.T) {
	t.Parallel()
	h := newHarness()
	c := mount(t, h, "42")
	h.viewport.set(domain.Geometry{ScrollTop: 1000, ScrollHeight: 10000, ClientHeight: 1000})
	c.Scrolled(h.clock.Now())

	require.NoError(t, c.MarkFinished(context.Background()))
	assert.Equal(t, []persistCall{{UserBookID: 7, Pct: 100}}, h.writer.Calls())
	assert.Equal(t, 100.0, c.Snapshot().ProgressPct)
	stored, _ := h.store.value(domain.ProgressKey("42"))
	assert.Equal(t, "100", stored)

	h.clock.Advance(2 * time.Second)
	assert.Len(t, h.writer.Calls(), 1, "the pending debounced write is superseded")
}

func TestMarkFinishedWithoutUserBook(t *testing.T) {
	t.Parallel()
	h := newHarness()
	c := mount(t, h, "99")
	assert.ErrorIs(t, c.MarkFinished(context.Background()), apperrors.ErrUnknownUserBook)

	h.viewport.set(domain.Geometry{ScrollTop: 4500, ScrollHeight: 10000, ClientHeight: 1000})
	c.Scrolled(h.clock.Now())
	h.clock.Advance(2 * time.Second)
	assert.Empty(t, h.writer.Calls())
	stored, ok := h.store.value(domain.ProgressKey("99"))
	require.True(t, ok, "progress is still stored locally")
	assert.Equal(t, "50", stored)
}

func TestUnmountReleasesEverything(t *testing.T) {
	t.Parallel()
	h := newHarness(withPollInterval(time.Second))
	h.source.err = errors.New("404")
	c, err := h.svc.Mount(context.Background(), dto.MountInput{DocumentID: "42", Viewport: h.viewport})
	require.NoError(t, err)

	progress := 30.0
	require.NoError(t, c.Relay(domain.TelemetryMessage{Type: domain.TelemetryScroll, Progress: &progress}))
	h.clock.Advance(time.Second)
	require.True(t, c.Snapshot().SyncPending)

	c.Unmount()
	c.Unmount()
	assert.True(t, h.viewer.session.isClosed())
	assert.Zero(t, h.clock.Pending(), "poll and debounce timers are stopped")

	delivered, err := h.svc.Relay(domain.TelemetryEnvelope{DocumentID: "42", Message: domain.TelemetryMessage{Type: domain.TelemetryScroll, Progress: &progress}})
	require.NoError(t, err)
	assert.False(t, delivered)

	h.clock.Advance(time.Minute)
	assert.Empty(t, h.writer.Calls())
	_, err = c.SavePosition(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNotMounted)
}

func TestUnmountClosesDocument(t *testing.T) {
	t.Parallel()
	h := newHarness()
	c, err := h.svc.Mount(context.Background(), dto.MountInput{DocumentID: "42", Viewport: h.viewport})
	require.NoError(t, err)
	c.Unmount()
	assert.True(t, h.doc.closed.Load())
}

func TestMountRequiresViewport(t *testing.T) {
	t.Parallel()
	h := newHarness()
	_, err := h.svc.Mount(context.Background(), dto.MountInput{DocumentID: "42"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestFinishDocumentWithoutMount(t *testing.T) {
	t.Parallel()
	h := newHarness()
	result, err := h.svc.FinishDocument(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 100, result.ProgressPct)
	assert.Equal(t, []persistCall{{UserBookID: 7, Pct: 100}}, h.writer.Calls())
	assert.Equal(t, []domain.ProgressEvent{{DocumentID: "42", ProgressPct: 100}}, h.publisher.Events())

	position, err := h.svc.Position(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, position.StoredProgressPct)
	assert.Equal(t, 100.0, *position.StoredProgressPct)
	require.NotNil(t, position.BackendProgress)
	assert.Nil(t, position.ScrollTop)
}
