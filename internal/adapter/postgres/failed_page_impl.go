package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/navicare/facility-sync/internal/entity"
)

// FailedPageRepoImpl provides a concrete implementation for the FailedPageRepository interface using PostgreSQL.
type FailedPageRepoImpl struct {
	db *pgxpool.Pool
}

// NewFailedPageRepo creates a new instance of FailedPageRepoImpl.
func NewFailedPageRepo(db *pgxpool.Pool) *FailedPageRepoImpl {
	return &FailedPageRepoImpl{db: db}
}

// SaveOrUpdate creates or updates a record for a failed page.
// It increments the attempt_count on conflict.
func (r *FailedPageRepoImpl) SaveOrUpdate(ctx context.Context, failed *entity.FailedPage) error {
	query := `
		INSERT INTO failed_pages (mode, segment, page, failure_reason, http_status_code, attempt_count, last_attempt_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6)
		ON CONFLICT (mode, segment, page) DO UPDATE SET
			failure_reason = EXCLUDED.failure_reason,
			http_status_code = EXCLUDED.http_status_code,
			attempt_count = failed_pages.attempt_count + 1,
			last_attempt_at = EXCLUDED.last_attempt_at;
	`
	_, err := r.db.Exec(ctx, query,
		failed.Mode,
		failed.Segment,
		failed.Page,
		failed.FailureReason,
		failed.HTTPStatusCode,
		failed.LastAttemptAt,
	)
	return err
}

// Delete removes a failed page record after the page finally commits.
func (r *FailedPageRepoImpl) Delete(ctx context.Context, mode entity.CrawlMode, segment, page int) error {
	query := `DELETE FROM failed_pages WHERE mode = $1 AND segment = $2 AND page = $3;`
	_, err := r.db.Exec(ctx, query, mode, segment, page)
	return err
}

// ListByIdentity retrieves the outstanding failed pages for one
// (mode, segment) identity.
func (r *FailedPageRepoImpl) ListByIdentity(ctx context.Context, mode entity.CrawlMode, segment int) ([]*entity.FailedPage, error) {
	query := `
		SELECT id, mode, segment, page, failure_reason, http_status_code, attempt_count, last_attempt_at
		FROM failed_pages
		WHERE mode = $1 AND segment = $2
		ORDER BY page ASC;
	`
	rows, err := r.db.Query(ctx, query, mode, segment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failedPages []*entity.FailedPage
	for rows.Next() {
		var fp entity.FailedPage
		if err := rows.Scan(
			&fp.ID,
			&fp.Mode,
			&fp.Segment,
			&fp.Page,
			&fp.FailureReason,
			&fp.HTTPStatusCode,
			&fp.AttemptCount,
			&fp.LastAttemptAt,
		); err != nil {
			return nil, err
		}
		failedPages = append(failedPages, &fp)
	}

	return failedPages, rows.Err()
}
