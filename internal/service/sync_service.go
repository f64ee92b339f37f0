package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	config "github.com/creatorpulse/metrics-api/configs"
	"github.com/creatorpulse/metrics-api/internal/models"
	"github.com/creatorpulse/metrics-api/internal/repository"
	"github.com/creatorpulse/metrics-api/internal/transfer"
	"github.com/creatorpulse/metrics-api/pkg/utils"
)

// Full account syncs for different users run concurrently up to this limit.
const syncConcurrency = 5

type SyncService interface {
	SyncUser(ctx context.Context, userID int64, platform string) (*transfer.SyncResult, error)
	SyncAllForPlatform(ctx context.Context) (*transfer.SyncResult, error)
	SyncAccounts(ctx context.Context) (*transfer.SyncResult, error)
}

type syncService struct {
	cfg config.Config
	tr  repository.TokenRepository
	cr  repository.ContentRepository
	sr  repository.SnapshotRepository
	ir  repository.InsightRepository
	yt  YoutubeService
	ig  InstagramService
	ar  *ArchiveService
}

func NewSyncService(
	cfg config.Config,
	tr repository.TokenRepository,
	cr repository.ContentRepository,
	sr repository.SnapshotRepository,
	ir repository.InsightRepository,
	yt YoutubeService,
	ig InstagramService,
	ar *ArchiveService) SyncService {
	return &syncService{
		cfg: cfg,
		tr:  tr,
		cr:  cr,
		sr:  sr,
		ir:  ir,
		yt:  yt,
		ig:  ig,
		ar:  ar,
	}
}

func newSyncResult(date time.Time) *transfer.SyncResult {
	return &transfer.SyncResult{
		SnapshotDate: date.Format("2006-01-02"),
	}
}

func addItemError(result *transfer.SyncResult, contentID string, err error) {
	result.Errors = append(result.Errors, transfer.SyncItemError{
		ContentID: contentID,
		Message:   err.Error(),
	})
}

// finishResult sets the aggregate success flag: a run succeeds when at least
// one item landed or there was nothing to do. It is not all-or-nothing.
func finishResult(result *transfer.SyncResult, itemCount int) {
	result.Success = result.SyncedItemCount > 0 || itemCount == 0
}

// SyncUser refreshes metrics for everything one user owns on one platform.
func (s *syncService) SyncUser(ctx context.Context, userID int64, platform string) (*transfer.SyncResult, error) {
	date := snapshotDate(time.Now())

	switch platform {
	case models.PlatformYoutube:
		return s.syncYoutubeUser(ctx, userID, date), nil
	case models.PlatformInstagram:
		token, err := s.tr.Get(ctx, userID, models.PlatformInstagram)
		if err != nil {
			return nil, err
		}
		if token == nil {
			// Not connected is a valid state, not a failure.
			result := newSyncResult(date)
			result.Success = true
			result.Details = "instagram is not connected"
			return result, nil
		}
		return s.syncInstagramAccount(ctx, token, date), nil
	default:
		return nil, ErrUnknownPlatform
	}
}

func (s *syncService) syncYoutubeUser(ctx context.Context, userID int64, date time.Time) *transfer.SyncResult {
	result := newSyncResult(date)

	ids, err := s.cr.ListExternalIDsByUser(ctx, userID, models.PlatformYoutube)
	if err != nil {
		addItemError(result, "", err)
		return result
	}
	if len(ids) == 0 {
		result.Success = true
		result.Details = "no content to sync"
		return result
	}

	// Video statistics are public; with no usable credential the sync
	// falls back to the keyless API-key path.
	accessToken := s.youtubeAccessToken(ctx, userID, result)

	metrics, err := s.yt.FetchContentMetrics(ctx, accessToken, ids)
	if err != nil {
		addItemError(result, "", err)
		return result
	}

	s.writeSnapshots(ctx, result, models.PlatformYoutube, date, ids, metrics)
	finishResult(result, len(ids))
	return result
}

func (s *syncService) youtubeAccessToken(ctx context.Context, userID int64, result *transfer.SyncResult) string {
	token, err := s.tr.Get(ctx, userID, models.PlatformYoutube)
	if err != nil || token == nil {
		return ""
	}

	token, err = s.yt.RefreshIfNeeded(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrReconnectRequired) {
			slog.Info(err.Error())
		}
		return ""
	}

	accessToken, err := utils.Decrypt(token.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return ""
	}
	return accessToken
}

// SyncAllForPlatform refreshes every known video regardless of owner using
// the service-level API key, so items from disconnected users stay fresh.
func (s *syncService) SyncAllForPlatform(ctx context.Context) (*transfer.SyncResult, error) {
	date := snapshotDate(time.Now())
	result := newSyncResult(date)

	ids, err := s.cr.ListExternalIDsByPlatform(ctx, models.PlatformYoutube)
	if err != nil {
		addItemError(result, "", err)
		return result, nil
	}
	if len(ids) == 0 {
		result.Success = true
		result.Details = "no content to sync"
		return result, nil
	}

	metrics, err := s.yt.FetchContentMetrics(ctx, "", ids)
	if err != nil {
		addItemError(result, "", err)
		return result, nil
	}

	s.writeSnapshots(ctx, result, models.PlatformYoutube, date, ids, metrics)
	finishResult(result, len(ids))

	s.archiveSnapshots(ctx, models.PlatformYoutube, date)
	return result, nil
}

// SyncAccounts runs a full account sync for every connected Instagram user:
// account insights, discovery of new media, then metric snapshots.
func (s *syncService) SyncAccounts(ctx context.Context) (*transfer.SyncResult, error) {
	date := snapshotDate(time.Now())
	aggregate := newSyncResult(date)

	tokens, err := s.tr.ListByPlatform(ctx, models.PlatformInstagram)
	if err != nil {
		addItemError(aggregate, "", err)
		return aggregate, nil
	}
	if len(tokens) == 0 {
		aggregate.Success = true
		aggregate.Details = "no connected accounts"
		return aggregate, nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	semaphore := make(chan struct{}, syncConcurrency)

	anySuccess := false
	for _, token := range tokens {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(token *models.PlatformToken) {
			defer wg.Done()
			defer func() { <-semaphore }()

			userResult := s.syncInstagramAccount(ctx, token, date)

			mu.Lock()
			defer mu.Unlock()
			aggregate.SyncedItemCount += userResult.SyncedItemCount
			aggregate.Errors = append(aggregate.Errors, userResult.Errors...)
			if userResult.Success {
				anySuccess = true
			}
		}(token)
	}
	wg.Wait()

	aggregate.Success = anySuccess

	s.archiveSnapshots(ctx, models.PlatformInstagram, date)
	return aggregate, nil
}

func (s *syncService) syncInstagramAccount(ctx context.Context, token *models.PlatformToken, date time.Time) *transfer.SyncResult {
	result := newSyncResult(date)

	if _, err := s.ig.RefreshIfNeeded(ctx, token); err != nil {
		addItemError(result, token.AccountID, err)
		return result
	}

	accessToken, err := utils.Decrypt(token.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		addItemError(result, token.AccountID, err)
		return result
	}

	s.storeAccountInsights(ctx, result, token, accessToken)

	ids := s.discoverContent(ctx, result, token, accessToken)
	if len(ids) == 0 {
		finishResult(result, 0)
		return result
	}

	metrics, err := s.ig.FetchContentMetrics(ctx, accessToken, ids)
	if err != nil {
		addItemError(result, "", err)
		return result
	}

	s.writeSnapshots(ctx, result, models.PlatformInstagram, date, ids, metrics)
	finishResult(result, len(ids))
	return result
}

func (s *syncService) storeAccountInsights(ctx context.Context, result *transfer.SyncResult, token *models.PlatformToken, accessToken string) {
	insights, err := s.ig.FetchAccountInsights(ctx, accessToken, token.AccountID)
	if err != nil {
		addItemError(result, token.AccountID, err)
		return
	}

	for _, insight := range insights {
		insight.UserID = token.UserID
		if err := s.ir.Upsert(ctx, insight); err != nil {
			addItemError(result, token.AccountID, fmt.Errorf("failed to store %s insight: %w", insight.Metric, err))
		}
	}
}

// discoverContent walks the account's media pages, creating content records
// and user links for items seen for the first time. One bad item never
// stops the walk.
func (s *syncService) discoverContent(ctx context.Context, result *transfer.SyncResult, token *models.PlatformToken, accessToken string) []string {
	var ids []string
	cursor := ""

	for {
		items, next, err := s.ig.FetchContentList(ctx, accessToken, token.AccountID, cursor)
		if err != nil {
			addItemError(result, token.AccountID, err)
			break
		}

		for _, item := range items {
			if err := s.ensureContent(ctx, token.UserID, models.PlatformInstagram, item); err != nil {
				addItemError(result, item.ExternalID, err)
				continue
			}
			ids = append(ids, item.ExternalID)
		}

		if next == "" {
			break
		}
		cursor = next
	}

	return ids
}

func (s *syncService) ensureContent(ctx context.Context, userID int64, platform string, item transfer.DiscoveredContent) error {
	existing, err := s.cr.GetByExternalID(ctx, platform, item.ExternalID)
	if err != nil {
		return err
	}

	var contentID int64
	if existing != nil {
		contentID = existing.ID
	} else {
		record := &models.ContentItem{
			ExternalID:   item.ExternalID,
			Platform:     platform,
			Title:        item.Title,
			ThumbnailURL: item.ThumbnailURL,
			Permalink:    item.Permalink,
			PublishedAt:  item.PublishedAt,
		}

		// Platform CDN URLs expire; keep our own copy when possible.
		if s.ar != nil && item.ThumbnailURL != "" {
			if mirrored, err := s.ar.MirrorThumbnail(ctx, platform, item.ExternalID, item.ThumbnailURL); err == nil {
				record.ThumbnailURL = mirrored
			} else {
				slog.Info(err.Error())
			}
		}

		contentID, err = s.cr.Create(ctx, record)
		if err != nil {
			if !repository.IsUniqueViolation(err) {
				return err
			}
			// A concurrent run won the insert; reuse its row.
			existing, err = s.cr.GetByExternalID(ctx, platform, item.ExternalID)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("content %s vanished after conflict", item.ExternalID)
			}
			contentID = existing.ID
		}
	}

	if err := s.cr.LinkUser(ctx, userID, contentID); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

// writeSnapshots persists one dated snapshot per item. The run's date was
// computed once by the caller so every row from this run compares cleanly.
func (s *syncService) writeSnapshots(ctx context.Context, result *transfer.SyncResult, platform string, date time.Time, ids []string, metrics map[string]*transfer.ContentMetrics) {
	for _, id := range ids {
		m, ok := metrics[id]
		if !ok {
			addItemError(result, id, errors.New("platform did not report metrics"))
			continue
		}

		snapshot := &models.MetricSnapshot{
			ContentID:      id,
			Platform:       platform,
			CapturedAt:     date,
			ViewCount:      m.ViewCount,
			LikeCount:      m.LikeCount,
			CommentCount:   m.CommentCount,
			ShareCount:     m.ShareCount,
			Reach:          m.Reach,
			SaveCount:      m.SaveCount,
			EngagementRate: m.EngagementRate,
		}
		if err := s.sr.Upsert(ctx, snapshot); err != nil {
			addItemError(result, id, err)
			continue
		}
		result.SyncedItemCount++
	}
}

func (s *syncService) archiveSnapshots(ctx context.Context, platform string, date time.Time) {
	if s.ar == nil {
		return
	}

	snapshots, err := s.sr.ListByDate(ctx, platform, date)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if len(snapshots) == 0 {
		return
	}
	if err := s.ar.UploadSnapshotArchive(ctx, platform, date, snapshots); err != nil {
		slog.Info(err.Error())
	}
}
