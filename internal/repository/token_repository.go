package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/creatorpulse/metrics-api/internal/models"
)

type TokenRepository interface {
	Upsert(ctx context.Context, t *models.PlatformToken) error
	Get(ctx context.Context, userID int64, platform string) (*models.PlatformToken, error)
	ListByPlatform(ctx context.Context, platform string) ([]*models.PlatformToken, error)
	ListExpiring(ctx context.Context, platform string, before time.Time) ([]*models.PlatformToken, error)
	Delete(ctx context.Context, userID int64, platform string) error
}

type tokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) TokenRepository {
	return &tokenRepository{db: db}
}

// Upsert writes the token row for (user_id, platform) in one statement.
// Empty strings and nil expiry in the incoming token keep the stored values,
// so a refresh that omits a rotated refresh token does not null it out.
func (r *tokenRepository) Upsert(ctx context.Context, t *models.PlatformToken) error {
	query := `
		INSERT INTO platform_tokens (
			user_id,
			platform,
			account_id,
			account_name,
			account_username,
			profile_picture_url,
			access_token,
			refresh_token,
			token_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			account_id = COALESCE(NULLIF(EXCLUDED.account_id, ''), platform_tokens.account_id),
			account_name = COALESCE(NULLIF(EXCLUDED.account_name, ''), platform_tokens.account_name),
			account_username = COALESCE(NULLIF(EXCLUDED.account_username, ''), platform_tokens.account_username),
			profile_picture_url = COALESCE(NULLIF(EXCLUDED.profile_picture_url, ''), platform_tokens.profile_picture_url),
			access_token = COALESCE(NULLIF(EXCLUDED.access_token, ''), platform_tokens.access_token),
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), platform_tokens.refresh_token),
			token_expires_at = COALESCE(EXCLUDED.token_expires_at, platform_tokens.token_expires_at),
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.ExecContext(ctx, query,
		t.UserID,
		t.Platform,
		t.AccountID,
		t.AccountName,
		t.AccountUsername,
		t.ProfilePicture,
		t.AccessToken,
		t.RefreshToken,
		t.TokenExpiresAt,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *tokenRepository) Get(ctx context.Context, userID int64, platform string) (*models.PlatformToken, error) {
	query := `
		SELECT id, user_id, platform, account_id, account_name, account_username,
			profile_picture_url, access_token, refresh_token, token_expires_at,
			created_at, updated_at
		FROM platform_tokens
		WHERE user_id = $1 AND platform = $2
	`
	row := r.db.QueryRowContext(ctx, query, userID, platform)

	var t models.PlatformToken
	var expiresAt sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.Platform, &t.AccountID, &t.AccountName,
		&t.AccountUsername, &t.ProfilePicture, &t.AccessToken, &t.RefreshToken,
		&expiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	if expiresAt.Valid {
		t.TokenExpiresAt = &expiresAt.Time
	}
	return &t, nil
}

func (r *tokenRepository) ListByPlatform(ctx context.Context, platform string) ([]*models.PlatformToken, error) {
	query := `
		SELECT id, user_id, platform, account_id, account_name, account_username,
			profile_picture_url, access_token, refresh_token, token_expires_at,
			created_at, updated_at
		FROM platform_tokens
		WHERE platform = $1
	`
	rows, err := r.db.QueryContext(ctx, query, platform)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanTokens(rows)
}

func (r *tokenRepository) ListExpiring(ctx context.Context, platform string, before time.Time) ([]*models.PlatformToken, error) {
	query := `
		SELECT id, user_id, platform, account_id, account_name, account_username,
			profile_picture_url, access_token, refresh_token, token_expires_at,
			created_at, updated_at
		FROM platform_tokens
		WHERE platform = $1 AND token_expires_at IS NOT NULL AND token_expires_at < $2
	`
	rows, err := r.db.QueryContext(ctx, query, platform, before)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanTokens(rows)
}

func (r *tokenRepository) Delete(ctx context.Context, userID int64, platform string) error {
	query := `DELETE FROM platform_tokens WHERE user_id = $1 AND platform = $2`
	_, err := r.db.ExecContext(ctx, query, userID, platform)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func scanTokens(rows *sql.Rows) ([]*models.PlatformToken, error) {
	var tokens []*models.PlatformToken
	for rows.Next() {
		var t models.PlatformToken
		var expiresAt sql.NullTime
		err := rows.Scan(&t.ID, &t.UserID, &t.Platform, &t.AccountID, &t.AccountName,
			&t.AccountUsername, &t.ProfilePicture, &t.AccessToken, &t.RefreshToken,
			&expiresAt, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		if expiresAt.Valid {
			t.TokenExpiresAt = &expiresAt.Time
		}
		tokens = append(tokens, &t)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return tokens, nil
}
