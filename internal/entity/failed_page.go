package entity

import "time"

// FailedPage mirrors the `failed_pages` PostgreSQL table schema. A row
// is written when a page exhausts its retries; the watermark never
// advances past such a page, so the next invocation of the same
// (mode, segment) identity picks it up again.
type FailedPage struct {
	ID             int64
	Mode           CrawlMode
	Segment        int
	Page           int
	FailureReason  string
	HTTPStatusCode int
	AttemptCount   int
	LastAttemptAt  time.Time
}
