package cortico

import (
	"errors"
	"strings"
	"time"

	"github.com/navicare/facility-sync/internal/entity"
	"github.com/navicare/facility-sync/pkg/utils"
)

var errUnidentifiedRecord = errors.New("record has no name or slug")

// normalizeRecord maps a raw upstream record into the internal facility
// shape plus its availability observation. Pure; records that cannot be
// identified are rejected rather than stored loosely typed.
func normalizeRecord(rec *record, category entity.FacilityType, now time.Time) (*entity.Facility, *entity.Observation, error) {
	name := strings.TrimSpace(rec.ClinicName)
	if name == "" {
		name = strings.TrimSpace(rec.Name)
	}
	sourceID := rec.ClinicSlug
	if sourceID == "" {
		sourceID = rec.Slug
	}
	if sourceID == "" {
		sourceID = utils.Slugify(name)
	}
	if sourceID == "" {
		return nil, nil, errUnidentifiedRecord
	}

	latitude, longitude := coordinates(rec)

	availability := entity.Availability{
		AcceptsNewPatients: rec.AcceptsNewPatients,
		BookableOnline:     rec.IsBookableOnline,
		HasTelehealth:      rec.HasTelehealth,
		NextOpenSlot:       nearestOpenSlot(rec.Availability, now),
	}
	// Pharmacies and labs carry no booking flags upstream; a website is
	// the closest signal that they can be reached online.
	if category != entity.FacilityTypeClinic {
		availability.BookableOnline = rec.Website != ""
	}

	facility := &entity.Facility{
		SourceID:      sourceID,
		Name:          name,
		FacilityType:  category,
		Website:       rec.Website,
		Email:         rec.Email,
		Phone:         utils.FormatPhone(rec.PhoneNumber),
		AddressLine1:  firstNonEmpty(rec.ClinicAddress, rec.Address),
		City:          firstNonEmpty(rec.ClinicCity, rec.City),
		Province:      firstNonEmpty(rec.ClinicProvince, rec.Province),
		Country:       firstNonEmpty(rec.ClinicCountry, rec.Country, "Canada"),
		Latitude:      latitude,
		Longitude:     longitude,
		Services:      normalizeServices(rec.Workflows),
		Hours:         parseOperatingHours(rec.OperatingHours),
		Availability:  availability,
		Status:        entity.FacilityStatusActive,
		LastSeenAt:    now,
		LastUpdatedAt: now,
	}

	observation := &entity.Observation{
		SourceID:     sourceID,
		ObservedAt:   now,
		Availability: availability,
	}
	return facility, observation, nil
}

func coordinates(rec *record) (lat, lon *float64) {
	// GeoJSON point order is [longitude, latitude].
	if rec.Point != nil && len(rec.Point.Coordinates) >= 2 {
		x := rec.Point.Coordinates[0]
		y := rec.Point.Coordinates[1]
		return &y, &x
	}
	return rec.Latitude, rec.Longitude
}

func normalizeServices(workflows []workflow) []entity.Service {
	var services []entity.Service
	for _, w := range workflows {
		slug := w.Slug
		if slug == "" {
			slug = utils.Slugify(w.DisplayName)
		}
		if slug == "" {
			continue
		}
		services = append(services, entity.Service{
			Slug:         slug,
			DisplayName:  w.DisplayName,
			WorkflowType: w.WorkflowType,
			HasInPerson:  w.HasClinic,
			HasPhone:     w.HasPhone,
			HasVideo:     w.HasVideo,
		})
	}
	return services
}

// nearestOpenSlot walks the loosely shaped availability payload and
// returns the nearest future timestamp it can find.
func nearestOpenSlot(payload any, now time.Time) *time.Time {
	var candidates []string
	collectTimestamps(payload, &candidates)

	var nearest *time.Time
	for _, c := range candidates {
		ts, err := time.Parse(time.RFC3339, c)
		if err != nil {
			continue
		}
		if ts.Before(now) {
			continue
		}
		if nearest == nil || ts.Before(*nearest) {
			t := ts
			nearest = &t
		}
	}
	return nearest
}

func collectTimestamps(payload any, out *[]string) {
	switch v := payload.(type) {
	case string:
		if v != "" {
			*out = append(*out, v)
		}
	case map[string]any:
		if at, ok := v["available_at"].(string); ok {
			*out = append(*out, at)
			return
		}
		if at, ok := v["time"].(string); ok {
			*out = append(*out, at)
			return
		}
		for _, item := range v {
			collectTimestamps(item, out)
		}
	case []any:
		for _, item := range v {
			collectTimestamps(item, out)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
