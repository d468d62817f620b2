package usecase

import "sync"

// pageTracker tracks per-page commit completion for one contiguous
// range and exposes the watermark: the highest page K such that every
// page from the range start through K has been committed. Workers may
// commit pages out of order; the watermark only ever moves forward and
// never skips an uncommitted page.
type pageTracker struct {
	mu        sync.Mutex
	start     int
	watermark int
	committed map[int]bool
}

func newPageTracker(start int) *pageTracker {
	return &pageTracker{
		start:     start,
		watermark: start - 1,
		committed: make(map[int]bool),
	}
}

// MarkCommitted records the page as committed and returns the updated
// watermark.
func (t *pageTracker) MarkCommitted(page int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.committed[page] = true
	for t.committed[t.watermark+1] {
		delete(t.committed, t.watermark+1)
		t.watermark++
	}
	return t.watermark
}

func (t *pageTracker) Watermark() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watermark
}
