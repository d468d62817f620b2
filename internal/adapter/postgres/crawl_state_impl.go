package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/navicare/facility-sync/internal/entity"
	"github.com/navicare/facility-sync/internal/repository"
)

// CrawlStateRepoImpl provides a concrete implementation for the CrawlStateRepository interface using PostgreSQL.
type CrawlStateRepoImpl struct {
	db *pgxpool.Pool
}

// NewCrawlStateRepo creates a new instance of CrawlStateRepoImpl.
func NewCrawlStateRepo(db *pgxpool.Pool) *CrawlStateRepoImpl {
	return &CrawlStateRepoImpl{db: db}
}

const crawlStateColumns = `mode, segment, run_id, total_pages, last_completed_page, status, started_at, completed_at, updated_at, version`

// Load returns the checkpoint for (mode, segment), or nil when none has
// been recorded.
func (r *CrawlStateRepoImpl) Load(ctx context.Context, mode entity.CrawlMode, segment int) (*entity.CrawlState, error) {
	query := `SELECT ` + crawlStateColumns + ` FROM crawl_state WHERE mode = $1 AND segment = $2;`
	row := r.db.QueryRow(ctx, query, mode, segment)

	state, err := scanCrawlState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Create inserts a fresh checkpoint row for (mode, segment), replacing
// the row left behind by the previous logical crawl.
func (r *CrawlStateRepoImpl) Create(ctx context.Context, state *entity.CrawlState) error {
	query := `
		INSERT INTO crawl_state (mode, segment, run_id, total_pages, last_completed_page, status, started_at, completed_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NOW(), 1)
		ON CONFLICT (mode, segment) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			total_pages = EXCLUDED.total_pages,
			last_completed_page = EXCLUDED.last_completed_page,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = NULL,
			updated_at = NOW(),
			version = 1;
	`
	_, err := r.db.Exec(ctx, query,
		state.Mode,
		state.Segment,
		state.RunID,
		state.TotalPages,
		state.LastCompletedPage,
		state.Status,
		state.StartedAt,
	)
	if err != nil {
		return err
	}
	state.Version = 1
	return nil
}

// Update persists the checkpoint with an optimistic version check. A
// zero row count means another invocation advanced the same identity;
// the caller must stop rather than clobber its progress.
func (r *CrawlStateRepoImpl) Update(ctx context.Context, state *entity.CrawlState) error {
	query := `
		UPDATE crawl_state
		SET total_pages = $3,
			last_completed_page = $4,
			status = $5,
			completed_at = $6,
			updated_at = NOW(),
			version = version + 1
		WHERE mode = $1 AND segment = $2 AND version = $7;
	`
	tag, err := r.db.Exec(ctx, query,
		state.Mode,
		state.Segment,
		state.TotalPages,
		state.LastCompletedPage,
		state.Status,
		state.CompletedAt,
		state.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrStaleCrawlState
	}
	state.Version++
	return nil
}

// ListByMode returns every segment's checkpoint for the mode, ordered
// by segment.
func (r *CrawlStateRepoImpl) ListByMode(ctx context.Context, mode entity.CrawlMode) ([]*entity.CrawlState, error) {
	query := `SELECT ` + crawlStateColumns + ` FROM crawl_state WHERE mode = $1 ORDER BY segment ASC;`
	rows, err := r.db.Query(ctx, query, mode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*entity.CrawlState
	for rows.Next() {
		state, err := scanCrawlState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

func scanCrawlState(row pgx.Row) (*entity.CrawlState, error) {
	var state entity.CrawlState
	err := row.Scan(
		&state.Mode,
		&state.Segment,
		&state.RunID,
		&state.TotalPages,
		&state.LastCompletedPage,
		&state.Status,
		&state.StartedAt,
		&state.CompletedAt,
		&state.UpdatedAt,
		&state.Version,
	)
	if err != nil {
		return nil, err
	}
	return &state, nil
}
