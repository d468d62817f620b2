package usecase

// PageRange is a contiguous 1-based page span, inclusive on both ends.
// An empty range has End < Start.
type PageRange struct {
	Start int
	End   int
}

func (r PageRange) Empty() bool { return r.End < r.Start }

// Pages returns how many pages the range covers.
func (r PageRange) Pages() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// PartitionSegment computes the page range owned by one segment of a
// segmented crawl. Segments past the end of the page space come back
// empty, which counts as trivially complete.
func PartitionSegment(totalPages, segmentSize, segmentIndex int) PageRange {
	start := segmentIndex*segmentSize + 1
	end := (segmentIndex + 1) * segmentSize
	if end > totalPages {
		end = totalPages
	}
	return PageRange{Start: start, End: end}
}
