package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionSegment(t *testing.T) {
	cases := []struct {
		name         string
		totalPages   int
		segmentSize  int
		segmentIndex int
		want         PageRange
		empty        bool
	}{
		{"first segment", 120, 50, 0, PageRange{1, 50}, false},
		{"middle segment", 120, 50, 1, PageRange{51, 100}, false},
		{"clamped tail", 120, 50, 2, PageRange{101, 120}, false},
		{"past the end", 120, 50, 3, PageRange{151, 120}, true},
		{"exact fit", 100, 50, 1, PageRange{51, 100}, false},
		{"single page total", 1, 50, 0, PageRange{1, 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PartitionSegment(tc.totalPages, tc.segmentSize, tc.segmentIndex)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.empty, got.Empty())
		})
	}
}

func TestPageRangePages(t *testing.T) {
	assert.Equal(t, 50, PageRange{1, 50}.Pages())
	assert.Equal(t, 1, PageRange{7, 7}.Pages())
	assert.Equal(t, 0, PageRange{151, 120}.Pages())
}
