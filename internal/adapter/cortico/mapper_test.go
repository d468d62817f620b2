package cortico

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navicare/facility-sync/internal/entity"
)

func TestNormalizeRecord_Clinic(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rec := &record{
		ClinicName:     "Harbour Medical Clinic",
		ClinicSlug:     "harbour-medical",
		ClinicAddress:  "100 Water St",
		ClinicCity:     "Vancouver",
		ClinicProvince: "BC",
		Point: &struct {
			Coordinates []float64 `json:"coordinates"`
		}{Coordinates: []float64{-123.11, 49.28}},
		AcceptsNewPatients: true,
		IsBookableOnline:   true,
		PhoneNumber:        "6045551234",
		Workflows: []workflow{
			{Slug: "walk-in", DisplayName: "Walk-in", WorkflowType: "appointment", HasClinic: true},
			{DisplayName: "Flu Shot"},
			{},
		},
	}

	facility, observation, err := normalizeRecord(rec, entity.FacilityTypeClinic, now)
	require.NoError(t, err)

	assert.Equal(t, "harbour-medical", facility.SourceID)
	assert.Equal(t, "Harbour Medical Clinic", facility.Name)
	assert.Equal(t, entity.FacilityTypeClinic, facility.FacilityType)
	assert.Equal(t, "Canada", facility.Country, "country defaults when upstream omits it")
	assert.Equal(t, "(604) 555-1234", facility.Phone)

	require.NotNil(t, facility.Latitude)
	require.NotNil(t, facility.Longitude)
	assert.InDelta(t, 49.28, *facility.Latitude, 1e-9)
	assert.InDelta(t, -123.11, *facility.Longitude, 1e-9)

	// Workflow with no slug gets one derived from its display name; a
	// fully empty workflow is dropped.
	require.Len(t, facility.Services, 2)
	assert.Equal(t, "walk-in", facility.Services[0].Slug)
	assert.Equal(t, "flu-shot", facility.Services[1].Slug)

	assert.True(t, facility.Availability.AcceptsNewPatients)
	assert.True(t, facility.Availability.BookableOnline)
	assert.Equal(t, entity.FacilityStatusActive, facility.Status)
	assert.Equal(t, now, facility.LastSeenAt)

	require.NotNil(t, observation)
	assert.Equal(t, "harbour-medical", observation.SourceID)
	assert.Equal(t, now, observation.ObservedAt)
	assert.Equal(t, facility.Availability, observation.Availability)
}

func TestNormalizeRecord_Pharmacy(t *testing.T) {
	now := time.Now().UTC()
	lat, lon := 43.65, -79.38
	rec := &record{
		Name:      "Downtown Pharmacy",
		Slug:      "downtown-pharmacy",
		Address:   "1 Queen St",
		City:      "Toronto",
		Province:  "ON",
		Country:   "Canada",
		Latitude:  &lat,
		Longitude: &lon,
		Website:   "https://downtownpharmacy.ca",
	}

	facility, _, err := normalizeRecord(rec, entity.FacilityTypePharmacy, now)
	require.NoError(t, err)

	assert.Equal(t, "downtown-pharmacy", facility.SourceID)
	assert.Equal(t, entity.FacilityTypePharmacy, facility.FacilityType)
	assert.Equal(t, "1 Queen St", facility.AddressLine1)
	require.NotNil(t, facility.Latitude)
	assert.InDelta(t, 43.65, *facility.Latitude, 1e-9)

	// Non-clinic records carry no booking flag; a website stands in.
	assert.True(t, facility.Availability.BookableOnline)
}

func TestNormalizeRecord_SlugFallsBackToName(t *testing.T) {
	facility, _, err := normalizeRecord(&record{Name: "St. Mary's Lab"}, entity.FacilityTypeLab, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "st-marys-lab", facility.SourceID)
}

func TestNormalizeRecord_Unidentified(t *testing.T) {
	_, _, err := normalizeRecord(&record{City: "Calgary"}, entity.FacilityTypeClinic, time.Now())
	assert.ErrorIs(t, err, errUnidentifiedRecord)
}

func TestNearestOpenSlot(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := "2026-03-09T10:00:00Z"
	soon := "2026-03-10T14:30:00Z"
	later := "2026-03-12T09:00:00Z"

	t.Run("list of timestamps", func(t *testing.T) {
		got := nearestOpenSlot([]any{past, later, soon}, now)
		require.NotNil(t, got)
		assert.Equal(t, soon, got.Format(time.RFC3339))
	})

	t.Run("nested objects", func(t *testing.T) {
		payload := map[string]any{
			"slots": []any{
				map[string]any{"available_at": later},
				map[string]any{"time": soon},
			},
		}
		got := nearestOpenSlot(payload, now)
		require.NotNil(t, got)
		assert.Equal(t, soon, got.Format(time.RFC3339))
	})

	t.Run("only past timestamps", func(t *testing.T) {
		assert.Nil(t, nearestOpenSlot([]any{past}, now))
	})

	t.Run("garbage input", func(t *testing.T) {
		assert.Nil(t, nearestOpenSlot("not a timestamp", now))
		assert.Nil(t, nearestOpenSlot(nil, now))
		assert.Nil(t, nearestOpenSlot(42, now))
	})
}
