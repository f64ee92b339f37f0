package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/creatorpulse/metrics-api/internal/models"
)

type InsightRepository interface {
	Upsert(ctx context.Context, in *models.AccountInsight) error
	ListByUser(ctx context.Context, userID int64, since time.Time) ([]*models.AccountInsight, error)
}

type insightRepository struct {
	db *sql.DB
}

func NewInsightRepository(db *sql.DB) InsightRepository {
	return &insightRepository{db: db}
}

func (r *insightRepository) Upsert(ctx context.Context, in *models.AccountInsight) error {
	query := `
		INSERT INTO account_insights (user_id, account_id, metric, value, end_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, account_id, metric, end_time) DO UPDATE SET
			value = EXCLUDED.value
	`
	_, err := r.db.ExecContext(ctx, query, in.UserID, in.AccountID, in.Metric, in.Value, in.EndTime)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *insightRepository) ListByUser(ctx context.Context, userID int64, since time.Time) ([]*models.AccountInsight, error) {
	query := `
		SELECT id, user_id, account_id, metric, value, end_time, created_at
		FROM account_insights
		WHERE user_id = $1 AND end_time >= $2
		ORDER BY end_time
	`
	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var insights []*models.AccountInsight
	for rows.Next() {
		var in models.AccountInsight
		err := rows.Scan(&in.ID, &in.UserID, &in.AccountID, &in.Metric, &in.Value, &in.EndTime, &in.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		insights = append(insights, &in)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return insights, nil
}
