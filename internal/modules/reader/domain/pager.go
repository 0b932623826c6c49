package domain

import (
	"math"
	"sort"
)

const (
	pagerWindow    = 2
	pagerWarmPages = 3
)

// PagesToLoad is the window of two pages either side of current plus the first
// three pages, sorted ascending.
func PagesToLoad(current, total int) []int {
	if total <= 0 {
		return nil
	}
	set := map[int]struct{}{}
	for n := max(1, current-pagerWindow); n <= min(total, current+pagerWindow); n++ {
		set[n] = struct{}{}
	}
	for n := 1; n <= min(pagerWarmPages, total); n++ {
		set[n] = struct{}{}
	}
	pages := make([]int, 0, len(set))
	for n := range set {
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return pages
}

// PageFromOffset estimates the current page assuming equally tall pages.
func PageFromOffset(scrollTop, scrollHeight float64, pageCount int) int {
	if pageCount <= 0 {
		return 0
	}
	if scrollHeight <= 0 {
		return 1
	}
	page := int(math.Floor(scrollTop/(scrollHeight/float64(pageCount)))) + 1
	return min(max(page, 1), pageCount)
}

// PageWithMostOverlap picks the page covering most of [top, bottom). Ties go to
// the earlier page.
func PageWithMostOverlap(bounds []PageBounds, top, bottom float64) (int, bool) {
	best, bestOverlap := 0, 0.0
	for _, b := range bounds {
		overlap := math.Min(b.Bottom, bottom) - math.Max(b.Top, top)
		if overlap <= 0 {
			continue
		}
		if overlap > bestOverlap || (overlap == bestOverlap && b.Number < best) {
			best, bestOverlap = b.Number, overlap
		}
	}
	return best, best > 0
}

// CurrentPage prefers page bounds and falls back to the uniform page estimate.
func CurrentPage(g Geometry, bounds []PageBounds, pageCount int) int {
	if page, ok := PageWithMostOverlap(bounds, g.ScrollTop, g.ScrollTop+g.ClientHeight); ok {
		return page
	}
	return PageFromOffset(g.ScrollTop, g.ScrollHeight, pageCount)
}
