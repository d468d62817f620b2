package entity

// RunSummary is what a finished (or partially finished) invocation
// reports to the caller. Completed is false whenever the assigned range
// ended with a terminal page or batch failure; the watermark then tells
// the next invocation where to resume.
type RunSummary struct {
	Mode                CrawlMode
	Segment             int
	StartPage           int
	EndPage             int
	Watermark           int
	PagesProcessed      int
	PagesFailed         int
	FacilitiesWritten   int
	ObservationsWritten int
	RecordsSkipped      int
	FacilitiesRetired   int64
	ObservationsPruned  int64
	Completed           bool
	ReconciliationRan   bool
}

// WebsiteEnrichment holds what the headless website pass extracted from
// a facility's own site.
type WebsiteEnrichment struct {
	SourceID       string
	PageTitle      string
	DetectedLabels []string
	BookingLink    string
}
