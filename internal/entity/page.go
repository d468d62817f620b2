package entity

// FacilityPage is one upstream page after normalization: the facilities
// and observations it yielded, plus the pagination metadata needed to
// size the crawl.
type FacilityPage struct {
	Page         int
	TotalPages   int
	HasMore      bool
	Facilities   []*Facility
	Observations []*Observation
	// Skipped counts raw records that could not be normalized and were
	// dropped rather than stored.
	Skipped int
}
