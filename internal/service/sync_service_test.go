package service

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/creatorpulse/metrics-api/configs"
	"github.com/creatorpulse/metrics-api/internal/models"
	"github.com/creatorpulse/metrics-api/internal/transfer"
	"github.com/creatorpulse/metrics-api/pkg/utils"
)

func newTestSyncService(tr *fakeTokenRepo, cr *fakeContentRepo, sr *fakeSnapshotRepo, ir *fakeInsightRepo, yt *fakeYoutube, ig *fakeInstagram) SyncService {
	cfg := config.Config{SecretKey: testSecretKey}
	return NewSyncService(cfg, tr, cr, sr, ir, yt, ig, nil)
}

func encryptToken(t *testing.T, plaintext string) string {
	t.Helper()
	encrypted, err := utils.Encrypt([]byte(plaintext), []byte(testSecretKey))
	require.NoError(t, err)
	return encrypted
}

func TestSyncUserYoutubePartialFailure(t *testing.T) {
	cr := newFakeContentRepo()
	cr.add(models.PlatformYoutube, "vid-a")
	cr.add(models.PlatformYoutube, "vid-b")
	cr.add(models.PlatformYoutube, "vid-c")

	yt := &fakeYoutube{
		metrics: map[string]*transfer.ContentMetrics{
			"vid-a": {ViewCount: int64Ptr(100)},
			"vid-b": {ViewCount: int64Ptr(200)},
		},
	}
	sr := newFakeSnapshotRepo()
	s := newTestSyncService(newFakeTokenRepo(), cr, sr, &fakeInsightRepo{}, yt, &fakeInstagram{})

	result, err := s.SyncUser(context.Background(), 7, models.PlatformYoutube)
	require.NoError(t, err)

	// Two of three landed: the run still counts as a success, with the
	// missing item reported individually.
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.SyncedItemCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "vid-c", result.Errors[0].ContentID)

	// No stored credential, so the fetch went through the keyless path.
	require.Len(t, yt.tokenSeen, 1)
	assert.Equal(t, "", yt.tokenSeen[0])
}

func TestSyncUserYoutubeSnapshotFailureIsolated(t *testing.T) {
	cr := newFakeContentRepo()
	cr.add(models.PlatformYoutube, "vid-a")
	cr.add(models.PlatformYoutube, "vid-b")

	yt := &fakeYoutube{
		metrics: map[string]*transfer.ContentMetrics{
			"vid-a": {ViewCount: int64Ptr(100)},
			"vid-b": {ViewCount: int64Ptr(200)},
		},
	}
	sr := newFakeSnapshotRepo()
	sr.failFor["vid-a"] = assert.AnError

	s := newTestSyncService(newFakeTokenRepo(), cr, sr, &fakeInsightRepo{}, yt, &fakeInstagram{})

	result, err := s.SyncUser(context.Background(), 7, models.PlatformYoutube)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SyncedItemCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "vid-a", result.Errors[0].ContentID)
}

func TestSyncUserYoutubeNoContent(t *testing.T) {
	s := newTestSyncService(newFakeTokenRepo(), newFakeContentRepo(), newFakeSnapshotRepo(), &fakeInsightRepo{}, &fakeYoutube{}, &fakeInstagram{})

	result, err := s.SyncUser(context.Background(), 7, models.PlatformYoutube)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.SyncedItemCount)
	assert.Empty(t, result.Errors)
}

func TestSyncUserInstagramNotConnected(t *testing.T) {
	s := newTestSyncService(newFakeTokenRepo(), newFakeContentRepo(), newFakeSnapshotRepo(), &fakeInsightRepo{}, &fakeYoutube{}, &fakeInstagram{})

	result, err := s.SyncUser(context.Background(), 7, models.PlatformInstagram)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "instagram is not connected", result.Details)
}

func TestSyncUserUnknownPlatform(t *testing.T) {
	s := newTestSyncService(newFakeTokenRepo(), newFakeContentRepo(), newFakeSnapshotRepo(), &fakeInsightRepo{}, &fakeYoutube{}, &fakeInstagram{})

	_, err := s.SyncUser(context.Background(), 7, "myspace")
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}

func instagramToken(t *testing.T, userID int64) *models.PlatformToken {
	t.Helper()
	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	return &models.PlatformToken{
		UserID:         userID,
		Platform:       models.PlatformInstagram,
		AccountID:      "1789",
		AccessToken:    encryptToken(t, "ig-access"),
		TokenExpiresAt: &expiresAt,
	}
}

func TestSyncUserInstagramFullRun(t *testing.T) {
	tr := newFakeTokenRepo()
	require.NoError(t, tr.Upsert(context.Background(), instagramToken(t, 7)))

	ig := &fakeInstagram{
		pages: [][]transfer.DiscoveredContent{
			{{ExternalID: "media-1", Title: "one"}, {ExternalID: "media-2", Title: "two"}},
			{{ExternalID: "media-3", Title: "three"}},
		},
		metrics: map[string]*transfer.ContentMetrics{
			"media-1": {LikeCount: int64Ptr(10)},
			"media-2": {LikeCount: int64Ptr(20)},
			"media-3": {LikeCount: int64Ptr(30)},
		},
		insights: []*models.AccountInsight{
			{AccountID: "1789", Metric: models.InsightFollowerCount, Value: 1234, EndTime: snapshotDate(time.Now())},
		},
	}

	cr := newFakeContentRepo()
	sr := newFakeSnapshotRepo()
	insights := &fakeInsightRepo{}
	s := newTestSyncService(tr, cr, sr, insights, &fakeYoutube{}, ig)

	result, err := s.SyncUser(context.Background(), 7, models.PlatformInstagram)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.SyncedItemCount)
	assert.Empty(t, result.Errors)

	// Discovery created content records and ownership links.
	assert.Len(t, cr.items, 3)
	assert.Len(t, cr.links, 3)

	// The account insight was stamped with the owning user before storage.
	require.Len(t, insights.upserts, 1)
	assert.Equal(t, int64(7), insights.upserts[0].UserID)
}

func TestSyncUserInstagramExpiredToken(t *testing.T) {
	tr := newFakeTokenRepo()
	require.NoError(t, tr.Upsert(context.Background(), instagramToken(t, 7)))

	ig := &fakeInstagram{refreshErr: ErrReconnectRequired}
	s := newTestSyncService(tr, newFakeContentRepo(), newFakeSnapshotRepo(), &fakeInsightRepo{}, &fakeYoutube{}, ig)

	result, err := s.SyncUser(context.Background(), 7, models.PlatformInstagram)
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "1789", result.Errors[0].ContentID)
}

func TestSyncInstagramDuplicateLinkIsNotAnError(t *testing.T) {
	tr := newFakeTokenRepo()
	require.NoError(t, tr.Upsert(context.Background(), instagramToken(t, 7)))

	ig := &fakeInstagram{
		pages: [][]transfer.DiscoveredContent{
			{{ExternalID: "media-1"}},
		},
		metrics: map[string]*transfer.ContentMetrics{
			"media-1": {LikeCount: int64Ptr(10)},
		},
	}

	cr := newFakeContentRepo()
	cr.linkErr = &pq.Error{Code: "23505"}

	s := newTestSyncService(tr, cr, newFakeSnapshotRepo(), &fakeInsightRepo{}, &fakeYoutube{}, ig)

	result, err := s.SyncUser(context.Background(), 7, models.PlatformInstagram)
	require.NoError(t, err)

	// The item was already linked by an earlier run; that is a no-op, not a
	// failure.
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SyncedItemCount)
	assert.Empty(t, result.Errors)
}

func TestSyncRerunSameDayOverwrites(t *testing.T) {
	cr := newFakeContentRepo()
	cr.add(models.PlatformYoutube, "vid-a")
	cr.add(models.PlatformYoutube, "vid-b")

	yt := &fakeYoutube{
		metrics: map[string]*transfer.ContentMetrics{
			"vid-a": {ViewCount: int64Ptr(100)},
			"vid-b": {ViewCount: int64Ptr(200)},
		},
	}
	sr := newFakeSnapshotRepo()
	s := newTestSyncService(newFakeTokenRepo(), cr, sr, &fakeInsightRepo{}, yt, &fakeInstagram{})

	for i := 0; i < 2; i++ {
		result, err := s.SyncUser(context.Background(), 7, models.PlatformYoutube)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 2, result.SyncedItemCount)
	}

	// Four writes, but only two distinct (content, date) rows.
	assert.Equal(t, 4, sr.upsertN)
	assert.Len(t, sr.upserts, 2)
}

func TestSyncAllForPlatformUsesKeylessPath(t *testing.T) {
	cr := newFakeContentRepo()
	cr.add(models.PlatformYoutube, "vid-a")

	yt := &fakeYoutube{
		metrics: map[string]*transfer.ContentMetrics{
			"vid-a": {ViewCount: int64Ptr(100)},
		},
	}
	s := newTestSyncService(newFakeTokenRepo(), cr, newFakeSnapshotRepo(), &fakeInsightRepo{}, yt, &fakeInstagram{})

	result, err := s.SyncAllForPlatform(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SyncedItemCount)

	require.Len(t, yt.tokenSeen, 1)
	assert.Equal(t, "", yt.tokenSeen[0])
}

func TestSyncAccountsAggregates(t *testing.T) {
	tr := newFakeTokenRepo()
	require.NoError(t, tr.Upsert(context.Background(), instagramToken(t, 7)))

	ig := &fakeInstagram{
		pages: [][]transfer.DiscoveredContent{
			{{ExternalID: "media-1"}, {ExternalID: "media-2"}},
		},
		metrics: map[string]*transfer.ContentMetrics{
			"media-1": {LikeCount: int64Ptr(10)},
			"media-2": {LikeCount: int64Ptr(20)},
		},
	}
	s := newTestSyncService(tr, newFakeContentRepo(), newFakeSnapshotRepo(), &fakeInsightRepo{}, &fakeYoutube{}, ig)

	result, err := s.SyncAccounts(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.SyncedItemCount)
}

func TestSyncAccountsNoneConnected(t *testing.T) {
	s := newTestSyncService(newFakeTokenRepo(), newFakeContentRepo(), newFakeSnapshotRepo(), &fakeInsightRepo{}, &fakeYoutube{}, &fakeInstagram{})

	result, err := s.SyncAccounts(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "no connected accounts", result.Details)
}
