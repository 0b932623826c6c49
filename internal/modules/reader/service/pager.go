package service

import "readingroom/internal/modules/reader/domain"

// ViewportPager tracks the current page and reports which pages still need a
// render. While the current page and total are unchanged only failed pages in
// the window are reported again, so they are retried once visible.
type ViewportPager struct {
	current int
	total   int
}

func (p *ViewportPager) Update(current, total int, stateOf func(int) domain.PageState) []int {
	moved := current != p.current || total != p.total
	p.current, p.total = current, total
	var missing []int
	for _, n := range domain.PagesToLoad(current, total) {
		switch stateOf(n) {
		case domain.PageFailed:
			missing = append(missing, n)
		case domain.PageIdle:
			if moved {
				missing = append(missing, n)
			}
		}
	}
	return missing
}

func (p *ViewportPager) Current() int {
	return p.current
}
