package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/navicare/facility-sync/internal/entity"
)

// FacilityRepoImpl provides a concrete implementation for the FacilityRepository interface using PostgreSQL.
type FacilityRepoImpl struct {
	db *pgxpool.Pool
}

// NewFacilityRepo creates a new instance of FacilityRepoImpl.
func NewFacilityRepo(db *pgxpool.Pool) *FacilityRepoImpl {
	return &FacilityRepoImpl{db: db}
}

// RetireUnseen marks inactive (or deletes, when hard is set) every
// active facility not seen since observedSince.
func (r *FacilityRepoImpl) RetireUnseen(ctx context.Context, observedSince time.Time, hard bool) (int64, error) {
	var query string
	if hard {
		query = `DELETE FROM facilities WHERE status = 'active' AND last_seen_at < $1;`
	} else {
		query = `
			UPDATE facilities
			SET status = 'inactive', last_updated_at = NOW()
			WHERE status = 'active' AND last_seen_at < $1;
		`
	}
	tag, err := r.db.Exec(ctx, query, observedSince)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListForEnrichment returns active facilities with a website whose rows
// have not been refreshed since staleBefore, oldest first.
func (r *FacilityRepoImpl) ListForEnrichment(ctx context.Context, staleBefore time.Time, limit int) ([]*entity.Facility, error) {
	query := `
		SELECT id, source_id, name, facility_type, website, email, phone,
			address_line1, city, province, country, latitude, longitude,
			services, hours, availability, status, last_seen_at, last_updated_at, created_at
		FROM facilities
		WHERE status = 'active' AND website <> '' AND last_updated_at < $1
		ORDER BY last_updated_at ASC
		LIMIT $2;
	`
	rows, err := r.db.Query(ctx, query, staleBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facilities []*entity.Facility
	for rows.Next() {
		var f entity.Facility
		var servicesJSON, hoursJSON, availabilityJSON []byte
		if err := rows.Scan(
			&f.ID,
			&f.SourceID,
			&f.Name,
			&f.FacilityType,
			&f.Website,
			&f.Email,
			&f.Phone,
			&f.AddressLine1,
			&f.City,
			&f.Province,
			&f.Country,
			&f.Latitude,
			&f.Longitude,
			&servicesJSON,
			&hoursJSON,
			&availabilityJSON,
			&f.Status,
			&f.LastSeenAt,
			&f.LastUpdatedAt,
			&f.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(servicesJSON, &f.Services); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(hoursJSON, &f.Hours); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(availabilityJSON, &f.Availability); err != nil {
			return nil, err
		}
		facilities = append(facilities, &f)
	}
	return facilities, rows.Err()
}

// SaveEnrichment stores the website-derived labels and booking link on
// the facility row without touching the crawled fields.
func (r *FacilityRepoImpl) SaveEnrichment(ctx context.Context, enrichment *entity.WebsiteEnrichment) error {
	enrichmentJSON, err := json.Marshal(enrichment)
	if err != nil {
		return err
	}
	query := `
		UPDATE facilities
		SET enrichment = $2, last_updated_at = NOW()
		WHERE source_id = $1;
	`
	_, err = r.db.Exec(ctx, query, enrichment.SourceID, enrichmentJSON)
	return err
}

// CountByType reports how many facilities are stored per facility type.
func (r *FacilityRepoImpl) CountByType(ctx context.Context) (map[entity.FacilityType]int64, error) {
	query := `SELECT facility_type, COUNT(*) FROM facilities GROUP BY facility_type;`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[entity.FacilityType]int64)
	for rows.Next() {
		var facilityType entity.FacilityType
		var count int64
		if err := rows.Scan(&facilityType, &count); err != nil {
			return nil, err
		}
		counts[facilityType] = count
	}
	return counts, rows.Err()
}
