package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ObservationRepoImpl provides a concrete implementation for the ObservationRepository interface using PostgreSQL.
type ObservationRepoImpl struct {
	db *pgxpool.Pool
}

// NewObservationRepo creates a new instance of ObservationRepoImpl.
func NewObservationRepo(db *pgxpool.Pool) *ObservationRepoImpl {
	return &ObservationRepoImpl{db: db}
}

// PruneOlderThan deletes observations older than cutoff and returns the
// number removed.
func (r *ObservationRepoImpl) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM facility_observations WHERE observed_at < $1;`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountSince reports how many observations were recorded at or after
// since.
func (r *ObservationRepoImpl) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM facility_observations WHERE observed_at >= $1;`, since).Scan(&count)
	return count, err
}
