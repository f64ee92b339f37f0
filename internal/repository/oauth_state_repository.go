package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/creatorpulse/metrics-api/internal/models"
)

type OAuthStateRepository interface {
	Create(ctx context.Context, state *models.OAuthState) error
	Consume(ctx context.Context, state string) (*models.OAuthState, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type oauthStateRepository struct {
	db *sql.DB
}

func NewOAuthStateRepository(db *sql.DB) OAuthStateRepository {
	return &oauthStateRepository{db: db}
}

func (r *oauthStateRepository) Create(ctx context.Context, state *models.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state, user_id, platform, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, state.State, state.UserID, state.Platform, state.ExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Consume reads and deletes the row in one statement so that two concurrent
// callback deliveries can never both succeed. Returns (nil, nil) both when
// the state never existed and when it was already consumed.
func (r *oauthStateRepository) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	query := `
		DELETE FROM oauth_states
		WHERE state = $1
		RETURNING state, user_id, platform, created_at, expires_at
	`
	var st models.OAuthState
	err := r.db.QueryRowContext(ctx, query, state).Scan(&st.State, &st.UserID, &st.Platform, &st.CreatedAt, &st.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &st, nil
}

func (r *oauthStateRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM oauth_states WHERE expires_at < CURRENT_TIMESTAMP`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return affected, nil
}
