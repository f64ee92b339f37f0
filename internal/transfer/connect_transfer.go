package transfer

import "time"

// ConnectInfo is returned when a connect flow is initiated; the frontend
// opens AuthorizationURL in a popup window.
type ConnectInfo struct {
	AuthorizationURL string `json:"authorization_url"`
	RedirectURI      string `json:"redirect_uri"`
}

// ConnectionStatus is the per-user, per-platform status read. Not being
// connected is a valid state, never an error.
type ConnectionStatus struct {
	Connected       bool       `json:"connected"`
	AccountID       string     `json:"account_id,omitempty"`
	AccountUsername string     `json:"account_username,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}
