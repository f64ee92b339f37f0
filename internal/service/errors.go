package service

import "errors"

var (
	// ErrStateInvalid covers unknown, already-consumed and expired OAuth
	// states. Callers must not be able to tell replayed from unknown.
	ErrStateInvalid = errors.New("authorization state is invalid or expired")

	// ErrReconnectRequired is returned for tokens that cannot be refreshed;
	// the user has to go through the connect flow again.
	ErrReconnectRequired = errors.New("access token expired, reconnection required")

	// ErrNoEligibleAccount means the account discovery step succeeded but
	// found no Instagram business account, usually because the permission
	// grant was skipped during authorization.
	ErrNoEligibleAccount = errors.New("no instagram business account linked to the authorized profile")

	ErrNotConnected = errors.New("platform is not connected")

	ErrUnknownPlatform = errors.New("unknown platform")
)
