package models

import (
	"time"
)

// OAuthState binds a user to an in-flight authorization attempt. Rows are
// single-use: Consume deletes the row in the same statement that reads it.
type OAuthState struct {
	State     string    `db:"state" json:"state"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Platform  string    `db:"platform" json:"platform"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}
