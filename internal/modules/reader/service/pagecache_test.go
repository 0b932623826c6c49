package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingroom/internal/modules/reader/domain"
	"readingroom/internal/modules/reader/service"
	"readingroom/internal/platform/logging"
)

func TestPageCacheConcurrentRequestsRenderOnce(t *testing.T) {
	t.Parallel()
	doc := newFakeDoc(5)
	doc.gate = make(chan struct{})
	cache := service.NewPageCache(doc, logging.Discard(), nil)

	var wg sync.WaitGroup
	results := make([]domain.Surface, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = cache.Request(context.Background(), 3)
		}()
	}
	require.Eventually(t, func() bool { return cache.State(3) == domain.PageLoading }, time.Second, time.Millisecond)
	close(doc.gate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(1), doc.renders.Load())
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, domain.PageReady, cache.State(3))

	_, err := cache.Request(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int32(1), doc.renders.Load(), "ready page must not render again")
}

func TestPageCacheRetriesFailedPageOnNextRequest(t *testing.T) {
	t.Parallel()
	doc := newFakeDoc(5)
	doc.fails[2] = 1
	var settled []domain.PageState
	var mu sync.Mutex
	cache := service.NewPageCache(doc, logging.Discard(), func(_ int, state domain.PageState) {
		mu.Lock()
		defer mu.Unlock()
		settled = append(settled, state)
	})

	_, err := cache.Request(context.Background(), 2)
	var pageErr *domain.PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, 2, pageErr.Page)
	assert.Equal(t, domain.PageFailed, cache.State(2))

	surface, err := cache.Request(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"page 2"}, surface.Lines)
	assert.Equal(t, int32(2), doc.renders.Load())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.PageState{domain.PageFailed, domain.PageReady}, settled)
}

func TestPageCacheCloseDiscardsInFlightRender(t *testing.T) {
	t.Parallel()
	doc := newFakeDoc(5)
	doc.gate = make(chan struct{})
	var hooked atomic.Bool
	cache := service.NewPageCache(doc, logging.Discard(), func(int, domain.PageState) { hooked.Store(true) })

	done := make(chan error, 1)
	go func() {
		_, err := cache.Request(context.Background(), 1)
		done <- err
	}()
	require.Eventually(t, func() bool { return doc.renders.Load() == 1 }, time.Second, time.Millisecond)
	cache.Close()
	close(doc.gate)

	assert.ErrorIs(t, <-done, service.ErrCacheClosed)
	assert.False(t, hooked.Load())
	_, ok := cache.Entry(1)
	require.True(t, ok)
	assert.NotEqual(t, domain.PageReady, cache.State(1))
}

func TestPageCacheCallerCancellationDoesNotCancelRender(t *testing.T) {
	t.Parallel()
	doc := newFakeDoc(5)
	doc.gate = make(chan struct{})
	cache := service.NewPageCache(doc, logging.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.Request(ctx, 4)
		done <- err
	}()
	require.Eventually(t, func() bool { return doc.renders.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))

	close(doc.gate)
	require.Eventually(t, func() bool { return cache.State(4) == domain.PageReady }, time.Second, time.Millisecond)
}

func TestPageCacheRejectsOutOfRangePages(t *testing.T) {
	t.Parallel()
	cache := service.NewPageCache(newFakeDoc(3), logging.Discard(), nil)
	_, err := cache.Request(context.Background(), 4)
	var pageErr *domain.PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, 4, pageErr.Page)
}

func TestViewportPagerReportsOnlyMissingPages(t *testing.T) {
	t.Parallel()
	states := map[int]domain.PageState{1: domain.PageReady, 2: domain.PageLoading, 6: domain.PageFailed}
	stateOf := func(n int) domain.PageState { return states[n] }

	var pager service.ViewportPager
	assert.Equal(t, []int{3, 4, 5, 6, 7}, pager.Update(5, 20, stateOf))
	assert.Equal(t, []int{6}, pager.Update(5, 20, stateOf), "unchanged position only retries failed pages")
	states[6] = domain.PageReady
	assert.Nil(t, pager.Update(5, 20, stateOf))
	assert.Equal(t, 5, pager.Current())
	assert.Equal(t, []int{3, 4, 5, 6}, pager.Update(4, 20, stateOf))
}
