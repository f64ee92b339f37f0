package models

import (
	"time"
)

// MetricSnapshot is one dated observation of a content item's metrics.
// Unique per (content_id, captured_at); captured_at is UTC midnight of the
// sync run. Nil pointers mean the platform did not report the field, which
// is different from zero.
type MetricSnapshot struct {
	ID             int64     `db:"id" json:"id"`
	ContentID      string    `db:"content_id" json:"content_id"`
	Platform       string    `db:"platform" json:"platform"`
	CapturedAt     time.Time `db:"captured_at" json:"captured_at"`
	ViewCount      *int64    `db:"view_count" json:"view_count"`
	LikeCount      *int64    `db:"like_count" json:"like_count"`
	CommentCount   *int64    `db:"comment_count" json:"comment_count"`
	ShareCount     *int64    `db:"share_count" json:"share_count"`
	Reach          *int64    `db:"reach" json:"reach"`
	SaveCount      *int64    `db:"save_count" json:"save_count"`
	EngagementRate *float64  `db:"engagement_rate" json:"engagement_rate"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

const (
	InsightFollowerCount   = "follower_count"
	InsightReach           = "reach"
	InsightProfileViews    = "profile_views"
	InsightAccountsEngaged = "accounts_engaged"
)

// AccountInsight is an account-level time series point, unique per
// (user_id, account_id, metric, end_time).
type AccountInsight struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	AccountID string    `db:"account_id" json:"account_id"`
	Metric    string    `db:"metric" json:"metric"`
	Value     int64     `db:"value" json:"value"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
