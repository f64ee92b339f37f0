package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorpulse/metrics-api/internal/models"
)

func TestTokenUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewTokenRepository(db)

	expiresAt := time.Now().Add(time.Hour)
	mock.ExpectExec("INSERT INTO platform_tokens").
		WithArgs(int64(7), models.PlatformYoutube, "UC123", "Channel", "channel",
			"https://example.com/pic.jpg", "enc-access", "enc-refresh", &expiresAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Upsert(context.Background(), &models.PlatformToken{
		UserID:          7,
		Platform:        models.PlatformYoutube,
		AccountID:       "UC123",
		AccountName:     "Channel",
		AccountUsername: "channel",
		ProfilePicture:  "https://example.com/pic.jpg",
		AccessToken:     "enc-access",
		RefreshToken:    "enc-refresh",
		TokenExpiresAt:  &expiresAt,
	})
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenGetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewTokenRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM platform_tokens").
		WithArgs(int64(7), models.PlatformInstagram).
		WillReturnError(sql.ErrNoRows)

	token, err := repo.Get(context.Background(), 7, models.PlatformInstagram)
	assert.NoError(t, err)
	assert.Nil(t, token)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewTokenRepository(db)

	now := time.Now()
	expiresAt := now.Add(time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "platform", "account_id", "account_name", "account_username",
		"profile_picture_url", "access_token", "refresh_token", "token_expires_at",
		"created_at", "updated_at",
	}).AddRow(int64(1), int64(7), models.PlatformYoutube, "UC123", "Channel", "channel",
		"", "enc-access", "enc-refresh", expiresAt, now, now)

	mock.ExpectQuery("SELECT (.+) FROM platform_tokens").
		WithArgs(int64(7), models.PlatformYoutube).
		WillReturnRows(rows)

	token, err := repo.Get(context.Background(), 7, models.PlatformYoutube)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "UC123", token.AccountID)
	require.NotNil(t, token.TokenExpiresAt)
	assert.WithinDuration(t, expiresAt, *token.TokenExpiresAt, time.Second)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenListExpiring(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewTokenRepository(db)

	now := time.Now()
	before := now.Add(30 * time.Minute)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "platform", "account_id", "account_name", "account_username",
		"profile_picture_url", "access_token", "refresh_token", "token_expires_at",
		"created_at", "updated_at",
	}).
		AddRow(int64(1), int64(7), models.PlatformYoutube, "UC1", "", "", "", "a", "r", now.Add(5*time.Minute), now, now).
		AddRow(int64(2), int64(8), models.PlatformYoutube, "UC2", "", "", "", "b", "r", now.Add(20*time.Minute), now, now)

	mock.ExpectQuery("SELECT (.+) FROM platform_tokens").
		WithArgs(models.PlatformYoutube, before).
		WillReturnRows(rows)

	tokens, err := repo.ListExpiring(context.Background(), models.PlatformYoutube, before)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
	assert.Equal(t, int64(8), tokens[1].UserID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
