package transfer

// MetricsSummary is the aggregator's read model: lifetime totals over the
// latest snapshot per item plus a trailing 24h growth percentage. Growth is
// nil when no item has a comparable baseline.
type MetricsSummary struct {
	ContentCount      int      `json:"content_count"`
	TotalViews        int64    `json:"total_views"`
	TotalLikes        int64    `json:"total_likes"`
	TotalComments     int64    `json:"total_comments"`
	TotalShares       int64    `json:"total_shares"`
	TotalReach        int64    `json:"total_reach"`
	TotalSaves        int64    `json:"total_saves"`
	AvgEngagementRate *float64 `json:"avg_engagement_rate"`
	Growth24h         *float64 `json:"growth_24h"`
}
