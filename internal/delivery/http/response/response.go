package response

import "time"

// CrawlStateResponse is a DTO for one (mode, segment) checkpoint,
// mirroring entity.CrawlState.
type CrawlStateResponse struct {
	Mode              string     `json:"mode"`
	Segment           int        `json:"segment"`
	RunID             string     `json:"run_id"`
	TotalPages        int        `json:"total_pages"`
	LastCompletedPage int        `json:"last_completed_page"`
	Status            string     `json:"status"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// StatusResponse is the full status snapshot served by /api/status.
type StatusResponse struct {
	CrawlStates         []CrawlStateResponse `json:"crawl_states"`
	FacilitiesByType    map[string]int64     `json:"facilities_by_type"`
	ObservationsLast24h int64                `json:"observations_last_24h"`
	GeneratedAt         time.Time            `json:"generated_at"`
}
