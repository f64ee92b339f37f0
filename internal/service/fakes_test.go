package service

import (
	"context"
	"fmt"
	"time"

	"github.com/creatorpulse/metrics-api/internal/models"
	"github.com/creatorpulse/metrics-api/internal/transfer"
)

// 32 bytes, AES-256.
const testSecretKey = "0123456789abcdef0123456789abcdef"

type fakeStateRepo struct {
	states  map[string]*models.OAuthState
	created []*models.OAuthState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*models.OAuthState)}
}

func (f *fakeStateRepo) Create(ctx context.Context, state *models.OAuthState) error {
	f.states[state.State] = state
	f.created = append(f.created, state)
	return nil
}

func (f *fakeStateRepo) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	record, ok := f.states[state]
	if !ok {
		return nil, nil
	}
	delete(f.states, state)
	return record, nil
}

func (f *fakeStateRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for key, record := range f.states {
		if time.Now().After(record.ExpiresAt) {
			delete(f.states, key)
			n++
		}
	}
	return n, nil
}

type fakeTokenRepo struct {
	tokens  map[string]*models.PlatformToken
	upserts []*models.PlatformToken
	deleted []string
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*models.PlatformToken)}
}

func tokenKey(userID int64, platform string) string {
	return fmt.Sprintf("%d|%s", userID, platform)
}

func (f *fakeTokenRepo) Upsert(ctx context.Context, t *models.PlatformToken) error {
	f.tokens[tokenKey(t.UserID, t.Platform)] = t
	f.upserts = append(f.upserts, t)
	return nil
}

func (f *fakeTokenRepo) Get(ctx context.Context, userID int64, platform string) (*models.PlatformToken, error) {
	return f.tokens[tokenKey(userID, platform)], nil
}

func (f *fakeTokenRepo) ListByPlatform(ctx context.Context, platform string) ([]*models.PlatformToken, error) {
	var out []*models.PlatformToken
	for _, t := range f.tokens {
		if t.Platform == platform {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTokenRepo) ListExpiring(ctx context.Context, platform string, before time.Time) ([]*models.PlatformToken, error) {
	var out []*models.PlatformToken
	for _, t := range f.tokens {
		if t.Platform == platform && t.TokenExpiresAt != nil && t.TokenExpiresAt.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTokenRepo) Delete(ctx context.Context, userID int64, platform string) error {
	key := tokenKey(userID, platform)
	if _, ok := f.tokens[key]; ok {
		delete(f.tokens, key)
	}
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeContentRepo struct {
	nextID    int64
	items     map[string]*models.ContentItem
	links     map[string]bool
	userIDs   []string
	createErr error
	linkErr   error
}

func newFakeContentRepo() *fakeContentRepo {
	return &fakeContentRepo{
		items: make(map[string]*models.ContentItem),
		links: make(map[string]bool),
	}
}

func contentKey(platform, externalID string) string {
	return platform + "|" + externalID
}

func (f *fakeContentRepo) Create(ctx context.Context, item *models.ContentItem) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	stored := *item
	stored.ID = f.nextID
	f.items[contentKey(item.Platform, item.ExternalID)] = &stored
	return stored.ID, nil
}

func (f *fakeContentRepo) GetByExternalID(ctx context.Context, platform, externalID string) (*models.ContentItem, error) {
	return f.items[contentKey(platform, externalID)], nil
}

func (f *fakeContentRepo) LinkUser(ctx context.Context, userID, contentID int64) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	f.links[fmt.Sprintf("%d|%d", userID, contentID)] = true
	return nil
}

func (f *fakeContentRepo) ListExternalIDsByUser(ctx context.Context, userID int64, platform string) ([]string, error) {
	var out []string
	for _, id := range f.userIDs {
		if item, ok := f.items[contentKey(platform, id)]; ok && item.Platform == platform {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeContentRepo) ListExternalIDsByPlatform(ctx context.Context, platform string) ([]string, error) {
	var out []string
	for _, item := range f.items {
		if item.Platform == platform {
			out = append(out, item.ExternalID)
		}
	}
	return out, nil
}

// add seeds a content item and marks it as owned, the state after a past
// discovery run.
func (f *fakeContentRepo) add(platform, externalID string) {
	f.nextID++
	f.items[contentKey(platform, externalID)] = &models.ContentItem{
		ID:         f.nextID,
		ExternalID: externalID,
		Platform:   platform,
	}
	f.userIDs = append(f.userIDs, externalID)
}

type fakeSnapshotRepo struct {
	upserts   map[string]*models.MetricSnapshot
	upsertN   int
	failFor   map[string]error
	latest    []*models.MetricSnapshot
	baselines []*models.MetricSnapshot
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{
		upserts: make(map[string]*models.MetricSnapshot),
		failFor: make(map[string]error),
	}
}

func (f *fakeSnapshotRepo) Upsert(ctx context.Context, s *models.MetricSnapshot) error {
	if err := f.failFor[s.ContentID]; err != nil {
		return err
	}
	f.upsertN++
	f.upserts[s.ContentID+"|"+s.CapturedAt.Format("2006-01-02")] = s
	return nil
}

func (f *fakeSnapshotRepo) LatestByContentIDs(ctx context.Context, contentIDs []string) ([]*models.MetricSnapshot, error) {
	return f.latest, nil
}

func (f *fakeSnapshotRepo) BaselineByContentIDs(ctx context.Context, contentIDs []string, cutoff time.Time) ([]*models.MetricSnapshot, error) {
	return f.baselines, nil
}

func (f *fakeSnapshotRepo) ListByDate(ctx context.Context, platform string, capturedAt time.Time) ([]*models.MetricSnapshot, error) {
	return nil, nil
}

type fakeInsightRepo struct {
	upserts []*models.AccountInsight
}

func (f *fakeInsightRepo) Upsert(ctx context.Context, in *models.AccountInsight) error {
	f.upserts = append(f.upserts, in)
	return nil
}

func (f *fakeInsightRepo) ListByUser(ctx context.Context, userID int64, since time.Time) ([]*models.AccountInsight, error) {
	return f.upserts, nil
}

type fakeYoutube struct {
	exchange   *transfer.ExchangeResult
	metrics    map[string]*transfer.ContentMetrics
	metricsErr error
	refreshErr error

	metricsCalls [][]string
	tokenSeen    []string
}

func (f *fakeYoutube) ExchangeCode(ctx context.Context, code string) (*transfer.ExchangeResult, error) {
	return f.exchange, nil
}

func (f *fakeYoutube) RefreshIfNeeded(ctx context.Context, token *models.PlatformToken) (*models.PlatformToken, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return token, nil
}

func (f *fakeYoutube) FetchContentMetrics(ctx context.Context, accessToken string, ids []string) (map[string]*transfer.ContentMetrics, error) {
	f.tokenSeen = append(f.tokenSeen, accessToken)
	f.metricsCalls = append(f.metricsCalls, ids)
	if f.metricsErr != nil {
		return nil, f.metricsErr
	}
	return f.metrics, nil
}

func (f *fakeYoutube) FetchContentList(ctx context.Context, accessToken, channelID, cursor string) ([]transfer.DiscoveredContent, string, error) {
	return nil, "", nil
}

func (f *fakeYoutube) FetchAccountInsights(ctx context.Context, accessToken, channelID string) ([]*models.AccountInsight, error) {
	return nil, nil
}

type fakeInstagram struct {
	exchange   *transfer.ExchangeResult
	refreshErr error
	pages      [][]transfer.DiscoveredContent
	metrics    map[string]*transfer.ContentMetrics
	metricsErr error
	insights   []*models.AccountInsight

	listCalls int
}

func (f *fakeInstagram) ExchangeCode(ctx context.Context, code string) (*transfer.ExchangeResult, error) {
	return f.exchange, nil
}

func (f *fakeInstagram) RefreshIfNeeded(ctx context.Context, token *models.PlatformToken) (*models.PlatformToken, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return token, nil
}

func (f *fakeInstagram) FetchContentMetrics(ctx context.Context, accessToken string, ids []string) (map[string]*transfer.ContentMetrics, error) {
	if f.metricsErr != nil {
		return nil, f.metricsErr
	}
	return f.metrics, nil
}

func (f *fakeInstagram) FetchContentList(ctx context.Context, accessToken, accountID, cursor string) ([]transfer.DiscoveredContent, string, error) {
	if f.listCalls >= len(f.pages) {
		return nil, "", nil
	}
	page := f.pages[f.listCalls]
	f.listCalls++
	next := ""
	if f.listCalls < len(f.pages) {
		next = fmt.Sprintf("cursor-%d", f.listCalls)
	}
	return page, next, nil
}

func (f *fakeInstagram) FetchAccountInsights(ctx context.Context, accessToken, accountID string) ([]*models.AccountInsight, error) {
	return f.insights, nil
}
