package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	config "github.com/creatorpulse/metrics-api/configs"
	"github.com/creatorpulse/metrics-api/internal/models"
	"github.com/creatorpulse/metrics-api/internal/transfer"
)

const instagramGraphURL = "https://graph.facebook.com/v21.0"

// Per-media insight calls run concurrently up to this limit.
const instagramFetchConcurrency = 5

type InstagramService interface {
	ExchangeCode(ctx context.Context, code string) (*transfer.ExchangeResult, error)
	RefreshIfNeeded(ctx context.Context, token *models.PlatformToken) (*models.PlatformToken, error)
	FetchContentMetrics(ctx context.Context, accessToken string, ids []string) (map[string]*transfer.ContentMetrics, error)
	FetchContentList(ctx context.Context, accessToken, accountID, cursor string) ([]transfer.DiscoveredContent, string, error)
	FetchAccountInsights(ctx context.Context, accessToken, accountID string) ([]*models.AccountInsight, error)
}

type instagramService struct {
	cfg     config.Config
	client  *http.Client
	baseURL string
}

func NewInstagramService(cfg config.Config) InstagramService {
	return &instagramService{
		cfg:     cfg,
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: instagramGraphURL,
	}
}

// getJSON performs a GET against the Graph API and decodes into out. Error
// bodies are captured (status + platform message) for diagnosis.
func (ig *instagramService) getJSON(ctx context.Context, requestURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return err
	}

	resp, err := ig.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr transfer.InstagramErrorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("instagram api error (status %d, code %d): %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("instagram api error (status %d): %s", resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("unexpected instagram response shape: %w", err)
	}
	return nil
}

func (ig *instagramService) getShortLivedToken(ctx context.Context, code string) (string, error) {
	params := url.Values{}
	params.Set("client_id", ig.cfg.InstagramClientID)
	params.Set("client_secret", ig.cfg.InstagramClientSecret)
	params.Set("redirect_uri", ig.cfg.InstagramRedirectURI)
	params.Set("code", code)

	var result transfer.InstagramTokenResponse
	requestURL := fmt.Sprintf("%s/oauth/access_token?%s", ig.baseURL, params.Encode())
	if err := ig.getJSON(ctx, requestURL, &result); err != nil {
		return "", fmt.Errorf("failed to get short-lived token: %w", err)
	}
	if result.AccessToken == "" {
		return "", errors.New("no access token in exchange response")
	}
	return result.AccessToken, nil
}

func (ig *instagramService) getLongLivedToken(ctx context.Context, shortLivedToken string) (string, *time.Time, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", ig.cfg.InstagramClientID)
	params.Set("client_secret", ig.cfg.InstagramClientSecret)
	params.Set("fb_exchange_token", shortLivedToken)

	var result transfer.InstagramTokenResponse
	requestURL := fmt.Sprintf("%s/oauth/access_token?%s", ig.baseURL, params.Encode())
	if err := ig.getJSON(ctx, requestURL, &result); err != nil {
		return "", nil, fmt.Errorf("failed to get long-lived token: %w", err)
	}
	if result.AccessToken == "" {
		return "", nil, errors.New("no access token in long-lived exchange response")
	}

	var expiresAt *time.Time
	if result.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Second * time.Duration(result.ExpiresIn))
		expiresAt = &expiry
	}
	return result.AccessToken, expiresAt, nil
}

// discoverBusinessAccount finds the Instagram business account behind the
// authorized profile. The authenticated identity is a personal profile; the
// business account hangs off one of its pages, so missing page permissions
// are a distinct, user-fixable failure.
func (ig *instagramService) discoverBusinessAccount(ctx context.Context, accessToken string) (string, error) {
	params := url.Values{}
	params.Set("fields", "id,name,instagram_business_account")
	params.Set("access_token", accessToken)

	var pages transfer.InstagramPageList
	requestURL := fmt.Sprintf("%s/me/accounts?%s", ig.baseURL, params.Encode())
	if err := ig.getJSON(ctx, requestURL, &pages); err != nil {
		return "", fmt.Errorf("failed to list pages: %w", err)
	}

	for _, page := range pages.Data {
		if page.InstagramBusinessAccount != nil && page.InstagramBusinessAccount.ID != "" {
			return page.InstagramBusinessAccount.ID, nil
		}
	}
	return "", ErrNoEligibleAccount
}

func (ig *instagramService) getAccountInfo(ctx context.Context, accessToken, accountID string) (*transfer.InstagramAccountInfo, error) {
	params := url.Values{}
	params.Set("fields", "id,username,name,profile_picture_url,followers_count,media_count")
	params.Set("access_token", accessToken)

	var info transfer.InstagramAccountInfo
	requestURL := fmt.Sprintf("%s/%s?%s", ig.baseURL, accountID, params.Encode())
	if err := ig.getJSON(ctx, requestURL, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch account info: %w", err)
	}
	return &info, nil
}

func (ig *instagramService) ExchangeCode(ctx context.Context, code string) (*transfer.ExchangeResult, error) {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return nil, err
	}

	shortLivedToken, err := ig.getShortLivedToken(ctx, code)
	if err != nil {
		return nil, err
	}

	longLivedToken, expiresAt, err := ig.getLongLivedToken(ctx, shortLivedToken)
	if err != nil {
		return nil, err
	}

	accountID, err := ig.discoverBusinessAccount(ctx, longLivedToken)
	if err != nil {
		return nil, err
	}

	info, err := ig.getAccountInfo(ctx, longLivedToken, accountID)
	if err != nil {
		return nil, err
	}

	return &transfer.ExchangeResult{
		AccessToken:     longLivedToken,
		ExpiresAt:       expiresAt,
		AccountID:       info.ID,
		AccountName:     info.Name,
		AccountUsername: info.Username,
		ProfilePicture:  info.ProfilePicture,
	}, nil
}

// RefreshIfNeeded never refreshes: the long-lived token has no refresh
// mechanism, so an expired token means the user has to reconnect.
func (ig *instagramService) RefreshIfNeeded(ctx context.Context, token *models.PlatformToken) (*models.PlatformToken, error) {
	if !TokenExpired(token) {
		return token, nil
	}
	return nil, ErrReconnectRequired
}

type mediaCounts struct {
	LikeCount     *int64 `json:"like_count"`
	CommentsCount *int64 `json:"comments_count"`
}

func (ig *instagramService) fetchMediaMetrics(ctx context.Context, accessToken, mediaID string) (*transfer.ContentMetrics, error) {
	params := url.Values{}
	params.Set("fields", "like_count,comments_count")
	params.Set("access_token", accessToken)

	var counts mediaCounts
	requestURL := fmt.Sprintf("%s/%s?%s", ig.baseURL, mediaID, params.Encode())
	if err := ig.getJSON(ctx, requestURL, &counts); err != nil {
		return nil, err
	}

	metrics := &transfer.ContentMetrics{
		LikeCount:    counts.LikeCount,
		CommentCount: counts.CommentsCount,
	}

	// Insights are best effort: some media types report fewer metrics and
	// the counts above are still worth a snapshot.
	insightParams := url.Values{}
	insightParams.Set("metric", "reach,impressions,saved,shares")
	insightParams.Set("access_token", accessToken)

	var insights transfer.InstagramInsightList
	insightURL := fmt.Sprintf("%s/%s/insights?%s", ig.baseURL, mediaID, insightParams.Encode())
	if err := ig.getJSON(ctx, insightURL, &insights); err != nil {
		slog.Info(err.Error())
	} else {
		var impressions *int64
		for _, insight := range insights.Data {
			if len(insight.Values) == 0 {
				continue
			}
			value := insight.Values[len(insight.Values)-1].Value
			switch insight.Name {
			case "reach":
				metrics.Reach = int64Ptr(value)
			case "impressions":
				impressions = int64Ptr(value)
			case "saved":
				metrics.SaveCount = int64Ptr(value)
			case "shares":
				metrics.ShareCount = int64Ptr(value)
			}
		}
		if metrics.Reach == nil && impressions != nil {
			metrics.Reach = impressions
		}

		denominator := float64(derefInt64(metrics.Reach))
		if d := float64(derefInt64(impressions)); d > denominator {
			denominator = d
		}
		if denominator < 1 {
			denominator = 1
		}
		numerator := float64(derefInt64(metrics.LikeCount) + derefInt64(metrics.CommentCount) + derefInt64(metrics.SaveCount))
		metrics.EngagementRate = engagementRate(numerator, denominator)
	}

	return metrics, nil
}

// FetchContentMetrics fans per-media requests out through a small worker
// pool. A media id that fails or disappears is skipped; the rest of the
// batch still returns.
func (ig *instagramService) FetchContentMetrics(ctx context.Context, accessToken string, ids []string) (map[string]*transfer.ContentMetrics, error) {
	metrics := make(map[string]*transfer.ContentMetrics, len(ids))

	var wg sync.WaitGroup
	var mu sync.Mutex
	semaphore := make(chan struct{}, instagramFetchConcurrency)

	for _, id := range ids {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(mediaID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			m, err := ig.fetchMediaMetrics(ctx, accessToken, mediaID)
			if err != nil {
				slog.Info(fmt.Sprintf("skipping media %s: %s", mediaID, err.Error()))
				return
			}

			mu.Lock()
			metrics[mediaID] = m
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	return metrics, nil
}

func (ig *instagramService) FetchContentList(ctx context.Context, accessToken, accountID, cursor string) ([]transfer.DiscoveredContent, string, error) {
	params := url.Values{}
	params.Set("fields", "id,caption,media_type,media_url,thumbnail_url,permalink,timestamp")
	params.Set("limit", "50")
	params.Set("access_token", accessToken)
	if cursor != "" {
		params.Set("after", cursor)
	}

	var media transfer.InstagramMediaList
	requestURL := fmt.Sprintf("%s/%s/media?%s", ig.baseURL, accountID, params.Encode())
	if err := ig.getJSON(ctx, requestURL, &media); err != nil {
		return nil, "", fmt.Errorf("failed to list media: %w", err)
	}

	items := make([]transfer.DiscoveredContent, 0, len(media.Data))
	for _, m := range media.Data {
		content := transfer.DiscoveredContent{
			ExternalID:   m.ID,
			Title:        m.Caption,
			Permalink:    m.Permalink,
			ThumbnailURL: m.MediaURL,
		}
		if m.ThumbnailURL != "" {
			content.ThumbnailURL = m.ThumbnailURL
		}
		if m.Timestamp != "" {
			if publishedAt, err := parseGraphTime(m.Timestamp); err == nil {
				content.PublishedAt = &publishedAt
			}
		}
		items = append(items, content)
	}

	nextCursor := ""
	if media.Paging.Next != "" {
		nextCursor = media.Paging.Cursors.After
	}
	return items, nextCursor, nil
}

func (ig *instagramService) FetchAccountInsights(ctx context.Context, accessToken, accountID string) ([]*models.AccountInsight, error) {
	info, err := ig.getAccountInfo(ctx, accessToken, accountID)
	if err != nil {
		return nil, err
	}

	endTime := snapshotDate(time.Now())
	insights := []*models.AccountInsight{
		{
			AccountID: accountID,
			Metric:    models.InsightFollowerCount,
			Value:     info.FollowersCount,
			EndTime:   endTime,
		},
	}

	params := url.Values{}
	params.Set("metric", "reach,profile_views,accounts_engaged")
	params.Set("period", "day")
	params.Set("metric_type", "total_value")
	params.Set("access_token", accessToken)

	var list transfer.InstagramInsightList
	requestURL := fmt.Sprintf("%s/%s/insights?%s", ig.baseURL, accountID, params.Encode())
	if err := ig.getJSON(ctx, requestURL, &list); err != nil {
		// Account insights require instagram_manage_insights; the follower
		// count above is still worth storing.
		slog.Info(err.Error())
		return insights, nil
	}

	for _, insight := range list.Data {
		if len(insight.Values) == 0 {
			continue
		}
		last := insight.Values[len(insight.Values)-1]
		point := &models.AccountInsight{
			AccountID: accountID,
			Metric:    insight.Name,
			Value:     last.Value,
			EndTime:   endTime,
		}
		if last.EndTime != "" {
			if t, err := parseGraphTime(last.EndTime); err == nil {
				point.EndTime = t
			}
		}
		insights = append(insights, point)
	}

	return insights, nil
}

// parseGraphTime handles the Graph API's timestamp format, which omits the
// colon in the zone offset.
func parseGraphTime(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04:05-0700", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
