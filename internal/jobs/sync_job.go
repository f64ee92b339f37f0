package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/creatorpulse/metrics-api/internal/models"
	"github.com/creatorpulse/metrics-api/internal/queue"
	"github.com/creatorpulse/metrics-api/internal/repository"
)

type MetricsSyncJob struct {
	tr          repository.TokenRepository
	asynqClient *asynq.Client
}

func NewMetricsSyncJob(tr repository.TokenRepository, asynqClient *asynq.Client) *MetricsSyncJob {
	return &MetricsSyncJob{
		tr:          tr,
		asynqClient: asynqClient,
	}
}

// EnqueueSyncs fans a full metrics sweep out to the task queue, one task per
// connected account. The workers bound the actual concurrency, so a large
// user base only stretches the sweep out in time.
func (c *MetricsSyncJob) EnqueueSyncs() {
	ctx := context.Background()

	for _, platform := range []string{models.PlatformYoutube, models.PlatformInstagram} {
		tokens, err := c.tr.ListByPlatform(ctx, platform)
		if err != nil {
			slog.Info(err.Error())
			continue
		}

		for i, token := range tokens {
			payload := queue.SyncUserPayload{
				UserID:   token.UserID,
				Platform: platform,
			}

			// Stagger enqueues a little so a big sweep doesn't slam the
			// platform APIs all at once.
			delay := time.Duration(i%60) * time.Second
			if err := queue.EnqueueUserSync(c.asynqClient, payload, delay); err != nil {
				slog.Info(err.Error())
			}
		}
	}
}

type StateCleanupJob struct {
	st repository.OAuthStateRepository
}

func NewStateCleanupJob(st repository.OAuthStateRepository) *StateCleanupJob {
	return &StateCleanupJob{st: st}
}

// CleanupStates drops authorization states that were issued but never came
// back through a callback.
func (c *StateCleanupJob) CleanupStates() {
	if _, err := c.st.DeleteExpired(context.Background()); err != nil {
		slog.Info(err.Error())
	}
}
