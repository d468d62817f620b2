package cortico

// pageEnvelope is the paginated response shape shared by the Cortico
// clinic, pharmacy and lab endpoints.
type pageEnvelope struct {
	Count      int `json:"count"`
	TotalPages int `json:"total_pages"`
	Links      struct {
		Next *string `json:"next"`
	} `json:"links"`
	Results []record `json:"results"`
}

// workflow is one bookable service advertised on a clinic record.
type workflow struct {
	Slug             string `json:"slug"`
	DisplayName      string `json:"display_name"`
	WorkflowType     string `json:"workflow_type"`
	HasClinic        bool   `json:"has_clinic"`
	HasPhone         bool   `json:"has_phone"`
	HasVideo         bool   `json:"has_video"`
	AllowNewPatients bool   `json:"allow_new_patients"`
}

// record is a raw upstream facility. The clinic and pharmacy endpoints
// use different field names for the same concepts; both sets are
// declared here and the mapper picks whichever is populated.
type record struct {
	// Clinic endpoint shape.
	ClinicName     string `json:"clinic_name"`
	ClinicSlug     string `json:"clinic_slug"`
	ClinicAddress  string `json:"clinic_address"`
	ClinicCity     string `json:"clinic_city"`
	ClinicProvince string `json:"clinic_province"`
	ClinicCountry  string `json:"clinic_country"`
	Point          *struct {
		Coordinates []float64 `json:"coordinates"` // [longitude, latitude]
	} `json:"point"`
	AcceptsNewPatients bool       `json:"accepts_new_patients"`
	IsBookableOnline   bool       `json:"is_bookable_online"`
	HasTelehealth      bool       `json:"has_telehealth"`
	BookingURL         string     `json:"booking_url"`
	Workflows          []workflow `json:"workflows"`

	// Pharmacy/lab endpoint shape.
	Name      string   `json:"name"`
	Slug      string   `json:"slug"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	Province  string   `json:"province"`
	Country   string   `json:"country"`
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`

	// Shared fields.
	Website     string `json:"website"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	// Availability arrives as a map or list of timestamps (sometimes
	// nested objects); OperatingHours as a day-name map or a 7-element
	// list. Both are shaped too loosely upstream for a fixed struct.
	Availability   any `json:"availability"`
	OperatingHours any `json:"operating_hours"`
}
