package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorpulse/metrics-api/internal/models"
)

func TestEngagementRate(t *testing.T) {
	rate := engagementRate(15, 100)
	require.NotNil(t, rate)
	assert.InDelta(t, 0.15, *rate, 1e-9)

	// Zero denominator must yield nil, never NaN or Inf.
	assert.Nil(t, engagementRate(15, 0))
	assert.Nil(t, engagementRate(0, 0))
}

func TestSnapshotDate(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	now := time.Date(2026, 8, 23, 2, 30, 0, 0, loc) // 2026-08-22 17:30 UTC

	date := snapshotDate(now)
	assert.Equal(t, time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC), date)
}

func TestTokenExpired(t *testing.T) {
	assert.True(t, TokenExpired(nil))
	assert.True(t, TokenExpired(&models.PlatformToken{}))

	// Access token present but no expiry recorded.
	assert.True(t, TokenExpired(&models.PlatformToken{AccessToken: "x"}))

	soon := time.Now().Add(30 * time.Second)
	assert.True(t, TokenExpired(&models.PlatformToken{AccessToken: "x", TokenExpiresAt: &soon}))

	later := time.Now().Add(time.Hour)
	assert.False(t, TokenExpired(&models.PlatformToken{AccessToken: "x", TokenExpiresAt: &later}))
}
