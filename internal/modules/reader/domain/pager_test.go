package domain_test

import (
	"reflect"
	"testing"

	"readingroom/internal/modules/reader/domain"
)

func TestPagesToLoad(t *testing.T) {
	t.Parallel()
	cases := []struct {
		current, total int
		want           []int
	}{
		{current: 5, total: 20, want: []int{1, 2, 3, 4, 5, 6, 7}},
		{current: 1, total: 20, want: []int{1, 2, 3}},
		{current: 10, total: 20, want: []int{1, 2, 3, 8, 9, 10, 11, 12}},
		{current: 20, total: 20, want: []int{1, 2, 3, 18, 19, 20}},
		{current: 1, total: 2, want: []int{1, 2}},
		{current: 3, total: 0, want: nil},
	}
	for _, tc := range cases {
		if got := domain.PagesToLoad(tc.current, tc.total); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("PagesToLoad(%d, %d) = %v, want %v", tc.current, tc.total, got, tc.want)
		}
	}
}

func TestPageFromOffset(t *testing.T) {
	t.Parallel()
	if got := domain.PageFromOffset(0, 1000, 10); got != 1 {
		t.Fatalf("top page = %d", got)
	}
	if got := domain.PageFromOffset(450, 1000, 10); got != 5 {
		t.Fatalf("middle page = %d", got)
	}
	if got := domain.PageFromOffset(5000, 1000, 10); got != 10 {
		t.Fatalf("page must be clamped, got %d", got)
	}
	if got := domain.PageFromOffset(10, 0, 10); got != 1 {
		t.Fatalf("empty container page = %d", got)
	}
}

func TestCurrentPagePrefersOverlap(t *testing.T) {
	t.Parallel()
	bounds := []domain.PageBounds{
		{Number: 1, Top: 0, Bottom: 100},
		{Number: 2, Top: 100, Bottom: 200},
		{Number: 3, Top: 200, Bottom: 300},
	}
	g := domain.Geometry{ScrollTop: 130, ScrollHeight: 300, ClientHeight: 100}
	if got := domain.CurrentPage(g, bounds, 3); got != 2 {
		t.Fatalf("overlap page = %d", got)
	}
	if got := domain.CurrentPage(g, nil, 3); got != 2 {
		t.Fatalf("offset page = %d", got)
	}
}
