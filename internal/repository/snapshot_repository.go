package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/creatorpulse/metrics-api/internal/models"
	"github.com/lib/pq"
)

type SnapshotRepository interface {
	Upsert(ctx context.Context, s *models.MetricSnapshot) error
	LatestByContentIDs(ctx context.Context, contentIDs []string) ([]*models.MetricSnapshot, error)
	BaselineByContentIDs(ctx context.Context, contentIDs []string, cutoff time.Time) ([]*models.MetricSnapshot, error)
	ListByDate(ctx context.Context, platform string, capturedAt time.Time) ([]*models.MetricSnapshot, error)
}

type snapshotRepository struct {
	db *sql.DB
}

func NewSnapshotRepository(db *sql.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// Upsert overwrites all metric columns on conflict so that re-running a sync
// within the same UTC day is last-writer-wins rather than duplicating rows.
func (r *snapshotRepository) Upsert(ctx context.Context, s *models.MetricSnapshot) error {
	query := `
		INSERT INTO metric_snapshots (
			content_id,
			platform,
			captured_at,
			view_count,
			like_count,
			comment_count,
			share_count,
			reach,
			save_count,
			engagement_rate
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (content_id, captured_at) DO UPDATE SET
			view_count = EXCLUDED.view_count,
			like_count = EXCLUDED.like_count,
			comment_count = EXCLUDED.comment_count,
			share_count = EXCLUDED.share_count,
			reach = EXCLUDED.reach,
			save_count = EXCLUDED.save_count,
			engagement_rate = EXCLUDED.engagement_rate
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ContentID,
		s.Platform,
		s.CapturedAt,
		s.ViewCount,
		s.LikeCount,
		s.CommentCount,
		s.ShareCount,
		s.Reach,
		s.SaveCount,
		s.EngagementRate,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// LatestByContentIDs returns the most recent snapshot per content id.
func (r *snapshotRepository) LatestByContentIDs(ctx context.Context, contentIDs []string) ([]*models.MetricSnapshot, error) {
	query := `
		SELECT DISTINCT ON (content_id)
			id, content_id, platform, captured_at, view_count, like_count,
			comment_count, share_count, reach, save_count, engagement_rate, created_at
		FROM metric_snapshots
		WHERE content_id = ANY($1)
		ORDER BY content_id, captured_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(contentIDs))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// BaselineByContentIDs returns, per content id, the newest snapshot captured
// at or before the cutoff. Items first seen after the cutoff have no row.
func (r *snapshotRepository) BaselineByContentIDs(ctx context.Context, contentIDs []string, cutoff time.Time) ([]*models.MetricSnapshot, error) {
	query := `
		SELECT DISTINCT ON (content_id)
			id, content_id, platform, captured_at, view_count, like_count,
			comment_count, share_count, reach, save_count, engagement_rate, created_at
		FROM metric_snapshots
		WHERE content_id = ANY($1) AND captured_at <= $2
		ORDER BY content_id, captured_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(contentIDs), cutoff)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func (r *snapshotRepository) ListByDate(ctx context.Context, platform string, capturedAt time.Time) ([]*models.MetricSnapshot, error) {
	query := `
		SELECT id, content_id, platform, captured_at, view_count, like_count,
			comment_count, share_count, reach, save_count, engagement_rate, created_at
		FROM metric_snapshots
		WHERE platform = $1 AND captured_at = $2
	`
	rows, err := r.db.QueryContext(ctx, query, platform, capturedAt)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func scanSnapshots(rows *sql.Rows) ([]*models.MetricSnapshot, error) {
	var snapshots []*models.MetricSnapshot
	for rows.Next() {
		var s models.MetricSnapshot
		err := rows.Scan(&s.ID, &s.ContentID, &s.Platform, &s.CapturedAt,
			&s.ViewCount, &s.LikeCount, &s.CommentCount, &s.ShareCount,
			&s.Reach, &s.SaveCount, &s.EngagementRate, &s.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		snapshots = append(snapshots, &s)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return snapshots, nil
}
