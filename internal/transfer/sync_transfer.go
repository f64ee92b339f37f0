package transfer

import "time"

// ContentMetrics is the uniform per-item return type of both platform
// adapters. Nil fields were not reported by the platform.
type ContentMetrics struct {
	ViewCount      *int64   `json:"view_count"`
	LikeCount      *int64   `json:"like_count"`
	CommentCount   *int64   `json:"comment_count"`
	ShareCount     *int64   `json:"share_count"`
	Reach          *int64   `json:"reach"`
	SaveCount      *int64   `json:"save_count"`
	EngagementRate *float64 `json:"engagement_rate"`
}

// DiscoveredContent carries enough metadata to create a content record the
// first time an item is seen during an account sync.
type DiscoveredContent struct {
	ExternalID   string     `json:"external_id"`
	Title        string     `json:"title"`
	ThumbnailURL string     `json:"thumbnail_url"`
	Permalink    string     `json:"permalink"`
	PublishedAt  *time.Time `json:"published_at"`
}

// ExchangeResult is what a completed authorization code exchange yields:
// platform tokens plus the external account identity they belong to.
type ExchangeResult struct {
	AccessToken     string     `json:"-"`
	RefreshToken    string     `json:"-"`
	ExpiresAt       *time.Time `json:"expires_at"`
	AccountID       string     `json:"account_id"`
	AccountName     string     `json:"account_name"`
	AccountUsername string     `json:"account_username"`
	ProfilePicture  string     `json:"profile_picture"`
}

type SyncItemError struct {
	ContentID string `json:"content_id"`
	Message   string `json:"message"`
}

// SyncResult aggregates one orchestrator run. Per-item failures land in
// Errors; they are never returned as the run's error.
type SyncResult struct {
	Success         bool            `json:"success"`
	SyncedItemCount int             `json:"synced_item_count"`
	SnapshotDate    string          `json:"snapshot_date"`
	Details         string          `json:"details,omitempty"`
	Errors          []SyncItemError `json:"errors,omitempty"`
}

// BatchSyncResult combines both platforms' outcomes for the scheduled run.
type BatchSyncResult struct {
	Youtube   *SyncResult `json:"youtube"`
	Instagram *SyncResult `json:"instagram"`
}
