package usecase

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageTracker_PrefixOnly(t *testing.T) {
	tracker := newPageTracker(1)

	assert.Equal(t, 0, tracker.Watermark())
	assert.Equal(t, 0, tracker.MarkCommitted(3), "a gap must hold the watermark")
	assert.Equal(t, 1, tracker.MarkCommitted(1))
	assert.Equal(t, 3, tracker.MarkCommitted(2), "filling the gap releases the prefix")
}

func TestPageTracker_NonUnitStart(t *testing.T) {
	tracker := newPageTracker(51)

	assert.Equal(t, 50, tracker.Watermark())
	assert.Equal(t, 51, tracker.MarkCommitted(51))
	assert.Equal(t, 51, tracker.MarkCommitted(53))
	assert.Equal(t, 53, tracker.MarkCommitted(52))
}

func TestPageTracker_RandomOrderConverges(t *testing.T) {
	const pages = 200
	tracker := newPageTracker(1)

	order := rand.Perm(pages)
	var wg sync.WaitGroup
	for _, p := range order {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			watermark := tracker.MarkCommitted(page)
			// The watermark observed by any committer never exceeds the
			// page count and never runs ahead of a gap.
			assert.LessOrEqual(t, watermark, pages)
		}(p + 1)
	}
	wg.Wait()

	assert.Equal(t, pages, tracker.Watermark())
}
