package entity

import "time"

// FacilityType classifies the upstream source a record came from.
type FacilityType string

const (
	FacilityTypeClinic   FacilityType = "clinic"
	FacilityTypePharmacy FacilityType = "pharmacy"
	FacilityTypeLab      FacilityType = "lab"
)

// Facility statuses. Retired facilities are soft-marked inactive unless
// hard deletion is configured.
const (
	FacilityStatusActive   = "active"
	FacilityStatusInactive = "inactive"
)

// Service is one service offering advertised by a facility.
type Service struct {
	Slug         string `json:"slug"`
	DisplayName  string `json:"display_name"`
	WorkflowType string `json:"workflow_type,omitempty"`
	HasInPerson  bool   `json:"has_in_person,omitempty"`
	HasPhone     bool   `json:"has_phone,omitempty"`
	HasVideo     bool   `json:"has_video,omitempty"`
}

// HoursRecord is one open/close span for a weekday. A weekday may carry
// multiple slots (split shifts).
type HoursRecord struct {
	Weekday   int    `json:"weekday"` // 0 = Monday .. 6 = Sunday
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	Slot      int    `json:"slot"`
}

// Availability is the facility-type-dependent availability snapshot.
type Availability struct {
	AcceptsNewPatients bool       `json:"accepts_new_patients"`
	BookableOnline     bool       `json:"bookable_online"`
	HasTelehealth      bool       `json:"has_telehealth"`
	NextOpenSlot       *time.Time `json:"next_open_slot,omitempty"`
}

// Facility mirrors the `facilities` PostgreSQL table schema. SourceID is
// the upstream slug and the only stable join key across crawls; every
// other field is replaced on each full crawl.
type Facility struct {
	ID            int64
	SourceID      string
	Name          string
	FacilityType  FacilityType
	Website       string
	Email         string
	Phone         string
	AddressLine1  string
	City          string
	Province      string
	Country       string
	Latitude      *float64
	Longitude     *float64
	Services      []Service     // stored as JSONB
	Hours         []HoursRecord // stored as JSONB
	Availability  Availability  // stored as JSONB
	Status        string
	LastSeenAt    time.Time
	LastUpdatedAt time.Time
	CreatedAt     time.Time
}
