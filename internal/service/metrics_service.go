package service

import (
	"context"
	"time"

	"github.com/creatorpulse/metrics-api/internal/models"
	"github.com/creatorpulse/metrics-api/internal/repository"
	"github.com/creatorpulse/metrics-api/internal/transfer"
)

type MetricsService interface {
	Summary(ctx context.Context, userID int64) (*transfer.MetricsSummary, error)
	Insights(ctx context.Context, userID int64, days int) ([]*models.AccountInsight, error)
}

type metricsService struct {
	cr repository.ContentRepository
	sr repository.SnapshotRepository
	ir repository.InsightRepository
}

func NewMetricsService(cr repository.ContentRepository, sr repository.SnapshotRepository, ir repository.InsightRepository) MetricsService {
	return &metricsService{
		cr: cr,
		sr: sr,
		ir: ir,
	}
}

func (s *metricsService) Summary(ctx context.Context, userID int64) (*transfer.MetricsSummary, error) {
	var ids []string
	for _, platform := range []string{models.PlatformYoutube, models.PlatformInstagram} {
		platformIDs, err := s.cr.ListExternalIDsByUser(ctx, userID, platform)
		if err != nil {
			return nil, err
		}
		ids = append(ids, platformIDs...)
	}

	summary := &transfer.MetricsSummary{}
	if len(ids) == 0 {
		return summary, nil
	}

	latest, err := s.sr.LatestByContentIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var rateSum float64
	var rateCount int
	for _, snap := range latest {
		summary.ContentCount++
		summary.TotalViews += derefInt64(snap.ViewCount)
		summary.TotalLikes += derefInt64(snap.LikeCount)
		summary.TotalComments += derefInt64(snap.CommentCount)
		summary.TotalShares += derefInt64(snap.ShareCount)
		summary.TotalReach += derefInt64(snap.Reach)
		summary.TotalSaves += derefInt64(snap.SaveCount)
		if snap.EngagementRate != nil {
			rateSum += *snap.EngagementRate
			rateCount++
		}
	}
	summary.AvgEngagementRate = engagementRate(rateSum, float64(rateCount))

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	baselines, err := s.sr.BaselineByContentIDs(ctx, ids, cutoff)
	if err != nil {
		return nil, err
	}
	summary.Growth24h = computeGrowth(latest, baselines)

	return summary, nil
}

// Insights returns the account-level time series (follower count, reach and
// friends) for the trailing window.
func (s *metricsService) Insights(ctx context.Context, userID int64, days int) ([]*models.AccountInsight, error) {
	if days <= 0 {
		days = 30
	}
	since := snapshotDate(time.Now()).AddDate(0, 0, -days)
	return s.ir.ListByUser(ctx, userID, since)
}

// computeGrowth sums per-item view deltas over summed baselines instead of
// averaging per-item percentages, so an item with a tiny baseline cannot
// distort the aggregate. Items without a positive baseline are left out;
// with no usable baseline at all the growth is nil, not zero.
func computeGrowth(latest, baselines []*models.MetricSnapshot) *float64 {
	baselineByID := make(map[string]*models.MetricSnapshot, len(baselines))
	for _, snap := range baselines {
		baselineByID[snap.ContentID] = snap
	}

	var deltaSum, baseSum float64
	for _, current := range latest {
		baseline, ok := baselineByID[current.ContentID]
		if !ok {
			continue
		}
		if baseline.ViewCount == nil || *baseline.ViewCount <= 0 || current.ViewCount == nil {
			continue
		}
		// Comparing the baseline against itself says nothing.
		if current.CapturedAt.Equal(baseline.CapturedAt) {
			continue
		}
		deltaSum += float64(*current.ViewCount - *baseline.ViewCount)
		baseSum += float64(*baseline.ViewCount)
	}

	if baseSum == 0 {
		return nil
	}
	growth := deltaSum / baseSum * 100
	return &growth
}
