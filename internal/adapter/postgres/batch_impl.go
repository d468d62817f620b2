package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/navicare/facility-sync/internal/entity"
)

// BatchRepoImpl provides a concrete implementation for the BatchRepository interface using PostgreSQL.
// Every commit runs in a single transaction so the checkpoint watermark
// never gets ahead of storage.
type BatchRepoImpl struct {
	db *pgxpool.Pool
}

// NewBatchRepo creates a new instance of BatchRepoImpl.
func NewBatchRepo(db *pgxpool.Pool) *BatchRepoImpl {
	return &BatchRepoImpl{db: db}
}

// CommitFull upserts the facilities keyed by source_id and appends their
// observations atomically. Replaying the same batch is a no-op apart
// from refreshed timestamps.
func (r *BatchRepoImpl) CommitFull(ctx context.Context, facilities []*entity.Facility, observations []*entity.Observation) error {
	query := `
		INSERT INTO facilities (
			source_id, name, facility_type, website, email, phone,
			address_line1, city, province, country, latitude, longitude,
			services, hours, availability, status, last_seen_at, last_updated_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW())
		ON CONFLICT (source_id) DO UPDATE SET
			name = EXCLUDED.name,
			facility_type = EXCLUDED.facility_type,
			website = EXCLUDED.website,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address_line1 = EXCLUDED.address_line1,
			city = EXCLUDED.city,
			province = EXCLUDED.province,
			country = EXCLUDED.country,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			services = EXCLUDED.services,
			hours = EXCLUDED.hours,
			availability = EXCLUDED.availability,
			status = EXCLUDED.status,
			last_seen_at = EXCLUDED.last_seen_at,
			last_updated_at = EXCLUDED.last_updated_at;
	`

	return r.inTx(ctx, func(tx pgx.Tx) error {
		for _, f := range facilities {
			servicesJSON, hoursJSON, availabilityJSON, err := marshalFacilityJSON(f)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, query,
				f.SourceID,
				f.Name,
				f.FacilityType,
				f.Website,
				f.Email,
				f.Phone,
				f.AddressLine1,
				f.City,
				f.Province,
				f.Country,
				f.Latitude,
				f.Longitude,
				servicesJSON,
				hoursJSON,
				availabilityJSON,
				f.Status,
				f.LastSeenAt,
				f.LastUpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("upsert facility %s: %w", f.SourceID, err)
			}
		}
		return insertObservations(ctx, tx, observations)
	})
}

// CommitAvailability refreshes only the availability snapshot and
// last_updated_at of facilities that already exist. Unknown source
// identifiers are skipped silently; the next full crawl creates them.
func (r *BatchRepoImpl) CommitAvailability(ctx context.Context, facilities []*entity.Facility, observations []*entity.Observation) error {
	query := `
		UPDATE facilities
		SET availability = $2, last_updated_at = $3
		WHERE source_id = $1;
	`

	return r.inTx(ctx, func(tx pgx.Tx) error {
		for _, f := range facilities {
			availabilityJSON, err := json.Marshal(f.Availability)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, query, f.SourceID, availabilityJSON, f.LastUpdatedAt); err != nil {
				return fmt.Errorf("update availability for %s: %w", f.SourceID, err)
			}
		}
		return insertObservations(ctx, tx, observations)
	})
}

func (r *BatchRepoImpl) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertObservations(ctx context.Context, tx pgx.Tx, observations []*entity.Observation) error {
	query := `
		INSERT INTO facility_observations (source_id, observed_at, availability)
		VALUES ($1, $2, $3);
	`
	for _, o := range observations {
		availabilityJSON, err := json.Marshal(o.Availability)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, o.SourceID, o.ObservedAt, availabilityJSON); err != nil {
			return fmt.Errorf("insert observation for %s: %w", o.SourceID, err)
		}
	}
	return nil
}

func marshalFacilityJSON(f *entity.Facility) (services, hours, availability []byte, err error) {
	if services, err = json.Marshal(f.Services); err != nil {
		return nil, nil, nil, err
	}
	if hours, err = json.Marshal(f.Hours); err != nil {
		return nil, nil, nil, err
	}
	if availability, err = json.Marshal(f.Availability); err != nil {
		return nil, nil, nil, err
	}
	return services, hours, availability, nil
}
