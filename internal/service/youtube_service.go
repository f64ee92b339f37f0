package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	config "github.com/creatorpulse/metrics-api/configs"
	"github.com/creatorpulse/metrics-api/internal/models"
	"github.com/creatorpulse/metrics-api/internal/repository"
	"github.com/creatorpulse/metrics-api/internal/transfer"
	"github.com/creatorpulse/metrics-api/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// videos.list accepts at most 50 ids per call.
const youtubeBatchSize = 50

const requestTimeout = 15 * time.Second

type YoutubeService interface {
	ExchangeCode(ctx context.Context, code string) (*transfer.ExchangeResult, error)
	RefreshIfNeeded(ctx context.Context, token *models.PlatformToken) (*models.PlatformToken, error)
	FetchContentMetrics(ctx context.Context, accessToken string, ids []string) (map[string]*transfer.ContentMetrics, error)
	FetchContentList(ctx context.Context, accessToken, channelID, cursor string) ([]transfer.DiscoveredContent, string, error)
	FetchAccountInsights(ctx context.Context, accessToken, channelID string) ([]*models.AccountInsight, error)
}

type youtubeService struct {
	cfg config.Config
	tr  repository.TokenRepository
}

func NewYoutubeService(cfg config.Config, tr repository.TokenRepository) YoutubeService {
	return &youtubeService{
		cfg: cfg,
		tr:  tr,
	}
}

func (s *youtubeService) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  s.cfg.GoogleRedirectURI,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile", "https://www.googleapis.com/auth/youtube.readonly"},
		Endpoint:     google.Endpoint,
	}
}

// youtubeClient builds a Data API client. An empty access token yields the
// keyless client authorized by the service-level API key, which is enough
// for public video statistics.
func (s *youtubeService) youtubeClient(ctx context.Context, accessToken string) (*youtube.Service, error) {
	if accessToken == "" {
		return youtube.NewService(ctx, option.WithAPIKey(s.cfg.YoutubeAPIKey))
	}
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return youtube.NewService(ctx, option.WithTokenSource(tokenSource))
}

func (s *youtubeService) ExchangeCode(ctx context.Context, code string) (*transfer.ExchangeResult, error) {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return nil, err
	}

	oauth2Config := s.oauthConfig()
	if oauth2Config.ClientID == "" || oauth2Config.ClientSecret == "" || oauth2Config.RedirectURL == "" {
		err := errors.New("oauth2 configuration is incomplete")
		slog.Info(err.Error())
		return nil, err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	token, err := oauth2Config.Exchange(exchangeCtx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	yt, err := s.youtubeClient(ctx, token.AccessToken)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	// The acting channel is not part of the token response; it needs its
	// own lookup.
	channels, err := yt.Channels.List([]string{"id", "snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to resolve youtube channel: %w", err)
	}
	if len(channels.Items) == 0 {
		return nil, errors.New("no youtube channel exists for the authorized google account")
	}
	channel := channels.Items[0]

	result := &transfer.ExchangeResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		AccountID:    channel.Id,
		AccountName:  channel.Snippet.Title,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		result.ExpiresAt = &expiry
	}
	if channel.Snippet.CustomUrl != "" {
		result.AccountUsername = channel.Snippet.CustomUrl
	}
	if channel.Snippet.Thumbnails != nil && channel.Snippet.Thumbnails.Default != nil {
		result.ProfilePicture = channel.Snippet.Thumbnails.Default.Url
	}

	return result, nil
}

// RefreshIfNeeded refreshes a rotating access token through the stored
// refresh token and persists the result. Tokens that are still usable are
// returned unchanged.
func (s *youtubeService) RefreshIfNeeded(ctx context.Context, token *models.PlatformToken) (*models.PlatformToken, error) {
	if !TokenExpired(token) {
		return token, nil
	}
	if token == nil || token.RefreshToken == "" {
		return nil, ErrReconnectRequired
	}

	refreshToken, err := utils.Decrypt(token.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	refreshCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	tokenSource := s.oauthConfig().TokenSource(refreshCtx, &oauth2.Token{RefreshToken: refreshToken})
	refreshed, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to refresh youtube token: %w", err)
	}

	token.AccessToken, err = utils.Encrypt([]byte(refreshed.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}
	// Google does not always rotate the refresh token; an empty one keeps
	// the stored value through the upsert merge.
	if refreshed.RefreshToken != "" && refreshed.RefreshToken != refreshToken {
		token.RefreshToken, err = utils.Encrypt([]byte(refreshed.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return nil, err
		}
	}
	expiry := refreshed.Expiry
	token.TokenExpiresAt = &expiry

	update := &models.PlatformToken{
		UserID:         token.UserID,
		Platform:       token.Platform,
		AccessToken:    token.AccessToken,
		TokenExpiresAt: token.TokenExpiresAt,
	}
	if refreshed.RefreshToken != "" && refreshed.RefreshToken != refreshToken {
		update.RefreshToken = token.RefreshToken
	}
	if err := s.tr.Upsert(ctx, update); err != nil {
		return nil, err
	}

	return token, nil
}

// FetchContentMetrics pulls statistics for up to 50 video ids per request.
// Ids the API does not echo back (deleted or private videos) are skipped.
func (s *youtubeService) FetchContentMetrics(ctx context.Context, accessToken string, ids []string) (map[string]*transfer.ContentMetrics, error) {
	yt, err := s.youtubeClient(ctx, accessToken)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	metrics := make(map[string]*transfer.ContentMetrics, len(ids))

	for start := 0; start < len(ids); start += youtubeBatchSize {
		end := start + youtubeBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		response, err := yt.Videos.List([]string{"statistics"}).Id(chunk...).Context(callCtx).Do()
		cancel()
		if err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("failed to fetch video statistics: %w", err)
		}

		for _, item := range response.Items {
			if item.Statistics == nil {
				continue
			}
			views := int64(item.Statistics.ViewCount)
			likes := int64(item.Statistics.LikeCount)
			comments := int64(item.Statistics.CommentCount)

			metrics[item.Id] = &transfer.ContentMetrics{
				ViewCount:      int64Ptr(views),
				LikeCount:      int64Ptr(likes),
				CommentCount:   int64Ptr(comments),
				EngagementRate: engagementRate(float64(likes+comments), float64(views)),
			}
		}
	}

	return metrics, nil
}

func (s *youtubeService) FetchContentList(ctx context.Context, accessToken, channelID, cursor string) ([]transfer.DiscoveredContent, string, error) {
	yt, err := s.youtubeClient(ctx, accessToken)
	if err != nil {
		slog.Info(err.Error())
		return nil, "", err
	}

	channels, err := yt.Channels.List([]string{"contentDetails"}).Id(channelID).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, "", fmt.Errorf("failed to resolve uploads playlist: %w", err)
	}
	if len(channels.Items) == 0 {
		return nil, "", fmt.Errorf("youtube channel %s not found", channelID)
	}
	uploads := channels.Items[0].ContentDetails.RelatedPlaylists.Uploads

	call := yt.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(uploads).
		MaxResults(youtubeBatchSize)
	if cursor != "" {
		call = call.PageToken(cursor)
	}

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	response, err := call.Context(callCtx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, "", fmt.Errorf("failed to list channel uploads: %w", err)
	}

	items := make([]transfer.DiscoveredContent, 0, len(response.Items))
	for _, item := range response.Items {
		if item.ContentDetails == nil || item.Snippet == nil {
			continue
		}
		videoID := item.ContentDetails.VideoId
		content := transfer.DiscoveredContent{
			ExternalID: videoID,
			Title:      item.Snippet.Title,
			Permalink:  fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID),
		}
		if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.High != nil {
			content.ThumbnailURL = item.Snippet.Thumbnails.High.Url
		}
		if item.ContentDetails.VideoPublishedAt != "" {
			publishedAt, err := time.Parse(time.RFC3339, item.ContentDetails.VideoPublishedAt)
			if err == nil {
				content.PublishedAt = &publishedAt
			}
		}
		items = append(items, content)
	}

	return items, response.NextPageToken, nil
}

func (s *youtubeService) FetchAccountInsights(ctx context.Context, accessToken, channelID string) ([]*models.AccountInsight, error) {
	yt, err := s.youtubeClient(ctx, accessToken)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	channels, err := yt.Channels.List([]string{"statistics"}).Id(channelID).Context(callCtx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to fetch channel statistics: %w", err)
	}
	if len(channels.Items) == 0 {
		return nil, fmt.Errorf("youtube channel %s not found", channelID)
	}
	stats := channels.Items[0].Statistics
	if stats == nil {
		return nil, nil
	}

	endTime := snapshotDate(time.Now())
	return []*models.AccountInsight{
		{
			AccountID: channelID,
			Metric:    models.InsightFollowerCount,
			Value:     int64(stats.SubscriberCount),
			EndTime:   endTime,
		},
	}, nil
}

func GetUserInfo(client *http.Client) (*transfer.GoogleUserInfo, error) {
	userInfoURL := "https://www.googleapis.com/oauth2/v1/userinfo"

	response, err := client.Get(userInfoURL)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error fetching user info: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		slog.Info("Unexpected response status")
		return nil, fmt.Errorf("unexpected response status: %d", response.StatusCode)
	}

	var userInfo transfer.GoogleUserInfo
	if err := json.NewDecoder(response.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error decoding user info: %w", err)
	}

	return &userInfo, nil
}

func RevokeGoogleAccess(accessToken string) error {
	url := "https://oauth2.googleapis.com/revoke"
	payload := []byte("token=" + accessToken)

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token, status code: %d", resp.StatusCode)
	}
	return nil
}
