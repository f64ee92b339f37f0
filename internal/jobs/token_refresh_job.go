package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/creatorpulse/metrics-api/internal/models"
	"github.com/creatorpulse/metrics-api/internal/repository"
	"github.com/creatorpulse/metrics-api/internal/service"
)

type TokenRefreshJob struct {
	tr repository.TokenRepository
	yt service.YoutubeService
}

func NewTokenRefreshJob(
	tr repository.TokenRepository,
	yt service.YoutubeService) *TokenRefreshJob {
	return &TokenRefreshJob{
		tr: tr,
		yt: yt,
	}
}

// RefreshTokens proactively renews YouTube credentials about to expire, so
// that scheduled syncs never start with a dead token. Instagram long-lived
// tokens cannot be refreshed server-side and are skipped here.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	timeIn30Minutes := time.Now().Add(30 * time.Minute)

	tokens, err := c.tr.ListExpiring(ctx, models.PlatformYoutube, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, token := range tokens {

		wg.Add(1)
		semaphore <- struct{}{}

		go func(token *models.PlatformToken) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := c.yt.RefreshIfNeeded(ctx, token); err != nil {
				slog.Info("Unable to refresh tokens for YouTube")
			}
		}(token)
	}

	wg.Wait()
}
