package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/creatorpulse/metrics-api/internal/models"
)

type ContentRepository interface {
	Create(ctx context.Context, item *models.ContentItem) (int64, error)
	GetByExternalID(ctx context.Context, platform, externalID string) (*models.ContentItem, error)
	LinkUser(ctx context.Context, userID, contentID int64) error
	ListExternalIDsByUser(ctx context.Context, userID int64, platform string) ([]string, error)
	ListExternalIDsByPlatform(ctx context.Context, platform string) ([]string, error)
}

type contentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) Create(ctx context.Context, item *models.ContentItem) (int64, error) {
	query := `
		INSERT INTO content_items (external_id, platform, title, thumbnail_url, permalink, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		item.ExternalID,
		item.Platform,
		item.Title,
		item.ThumbnailURL,
		item.Permalink,
		item.PublishedAt,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *contentRepository) GetByExternalID(ctx context.Context, platform, externalID string) (*models.ContentItem, error) {
	query := `
		SELECT id, external_id, platform, title, thumbnail_url, permalink, published_at, created_at
		FROM content_items
		WHERE platform = $1 AND external_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, platform, externalID)

	var item models.ContentItem
	var publishedAt sql.NullTime
	err := row.Scan(&item.ID, &item.ExternalID, &item.Platform, &item.Title,
		&item.ThumbnailURL, &item.Permalink, &publishedAt, &item.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	if publishedAt.Valid {
		item.PublishedAt = &publishedAt.Time
	}
	return &item, nil
}

// LinkUser attaches a content item to its owner. A unique violation here
// means a concurrent run already created the link; callers classify it with
// IsUniqueViolation and treat it as success.
func (r *contentRepository) LinkUser(ctx context.Context, userID, contentID int64) error {
	query := `INSERT INTO user_content (user_id, content_id) VALUES ($1, $2)`
	_, err := r.db.ExecContext(ctx, query, userID, contentID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *contentRepository) ListExternalIDsByUser(ctx context.Context, userID int64, platform string) ([]string, error) {
	query := `
		SELECT ci.external_id
		FROM content_items ci
		JOIN user_content uc ON uc.content_id = ci.id
		WHERE uc.user_id = $1 AND ci.platform = $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, platform)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanIDs(rows)
}

func (r *contentRepository) ListExternalIDsByPlatform(ctx context.Context, platform string) ([]string, error) {
	query := `SELECT external_id FROM content_items WHERE platform = $1`
	rows, err := r.db.QueryContext(ctx, query, platform)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return ids, nil
}
