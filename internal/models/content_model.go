package models

import (
	"time"
)

// ContentItem is one piece of platform content (a video or a media post).
// ExternalID is the platform's own id and is what metric snapshots key on.
type ContentItem struct {
	ID           int64      `db:"id" json:"id"`
	ExternalID   string     `db:"external_id" json:"external_id"`
	Platform     string     `db:"platform" json:"platform"`
	Title        string     `db:"title" json:"title"`
	ThumbnailURL string     `db:"thumbnail_url" json:"thumbnail_url"`
	Permalink    string     `db:"permalink" json:"permalink"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
