package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	config "github.com/creatorpulse/metrics-api/configs"
	"github.com/creatorpulse/metrics-api/internal/models"
	"github.com/creatorpulse/metrics-api/internal/repository"
	"github.com/creatorpulse/metrics-api/internal/transfer"
	"github.com/creatorpulse/metrics-api/pkg/utils"
)

const (
	GOOGLE_AUTH_URL   = "https://accounts.google.com/o/oauth2/v2/auth"
	FACEBOOK_AUTH_URL = "https://www.facebook.com/v21.0/dialog/oauth"

	stateTTL = 10 * time.Minute

	// Tokens within this margin of expiry are treated as expired to avoid
	// races where a token dies mid-request.
	expiryMargin = 60 * time.Second
)

type ConnectService interface {
	BeginConnect(ctx context.Context, userID int64, platform string, forceReconnect bool) (*transfer.ConnectInfo, error)
	CompleteCallback(ctx context.Context, state, code string) (string, error)
	AbortCallback(ctx context.Context, state string)
	Status(ctx context.Context, userID int64, platform string) (*transfer.ConnectionStatus, error)
	Disconnect(ctx context.Context, userID int64, platform string) error
}

type connectService struct {
	cfg config.Config
	st  repository.OAuthStateRepository
	tr  repository.TokenRepository
	yt  YoutubeService
	ig  InstagramService
}

func NewConnectService(
	cfg config.Config,
	st repository.OAuthStateRepository,
	tr repository.TokenRepository,
	yt YoutubeService,
	ig InstagramService) ConnectService {
	return &connectService{
		cfg: cfg,
		st:  st,
		tr:  tr,
		yt:  yt,
		ig:  ig,
	}
}

// TokenExpired reports whether a stored token is unusable. A missing row,
// a missing expiry and an expiry within the safety margin all count.
func TokenExpired(t *models.PlatformToken) bool {
	if t == nil || t.AccessToken == "" {
		return true
	}
	if t.TokenExpiresAt == nil {
		return true
	}
	return time.Until(*t.TokenExpiresAt) < expiryMargin
}

func (s *connectService) BeginConnect(ctx context.Context, userID int64, platform string, forceReconnect bool) (*transfer.ConnectInfo, error) {
	if platform != models.PlatformYoutube && platform != models.PlatformInstagram {
		return nil, ErrUnknownPlatform
	}

	// Dropping the stored credential forces the provider to re-prompt for
	// permissions instead of silently re-issuing the old grant.
	if forceReconnect {
		if err := s.tr.Delete(ctx, userID, platform); err != nil {
			return nil, err
		}
	}

	state, err := gonanoid.New(32)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	record := &models.OAuthState{
		State:     state,
		UserID:    userID,
		Platform:  platform,
		ExpiresAt: time.Now().Add(stateTTL),
	}
	if err := s.st.Create(ctx, record); err != nil {
		return nil, err
	}

	authURL, redirectURI := s.buildAuthURL(platform, state, forceReconnect)
	return &transfer.ConnectInfo{
		AuthorizationURL: authURL,
		RedirectURI:      redirectURI,
	}, nil
}

func (s *connectService) buildAuthURL(platform, state string, forceReconnect bool) (string, string) {
	switch platform {
	case models.PlatformInstagram:
		params := url.Values{}
		params.Add("client_id", s.cfg.InstagramClientID)
		params.Add("scope", "instagram_basic,instagram_manage_insights,pages_show_list,pages_read_engagement")
		params.Add("response_type", "code")
		params.Add("redirect_uri", s.cfg.InstagramRedirectURI)
		params.Add("state", state)

		return fmt.Sprintf("%s?%s", FACEBOOK_AUTH_URL, params.Encode()), s.cfg.InstagramRedirectURI

	case models.PlatformYoutube:
		params := url.Values{}
		params.Add("client_id", s.cfg.GoogleClientID)
		params.Add("redirect_uri", s.cfg.GoogleRedirectURI)
		params.Add("response_type", "code")
		params.Add("scope", "https://www.googleapis.com/auth/userinfo.profile https://www.googleapis.com/auth/userinfo.email https://www.googleapis.com/auth/youtube.readonly")
		params.Add("state", state)
		params.Add("access_type", "offline")
		if forceReconnect {
			params.Add("prompt", "consent")
		}

		return fmt.Sprintf("%s?%s", GOOGLE_AUTH_URL, params.Encode()), s.cfg.GoogleRedirectURI

	default:
		return "", ""
	}
}

// CompleteCallback consumes the state, runs the platform's code exchange and
// stores the resulting credentials. Returns the platform the state belonged
// to so the caller can report it back to the opener window.
func (s *connectService) CompleteCallback(ctx context.Context, state, code string) (string, error) {
	record, err := s.st.Consume(ctx, state)
	if err != nil {
		return "", err
	}
	if record == nil {
		// Unknown and already-consumed states are indistinguishable on
		// purpose: either way the flow must restart.
		return "", ErrStateInvalid
	}
	if time.Now().After(record.ExpiresAt) {
		return record.Platform, ErrStateInvalid
	}

	var result *transfer.ExchangeResult
	switch record.Platform {
	case models.PlatformYoutube:
		result, err = s.yt.ExchangeCode(ctx, code)
	case models.PlatformInstagram:
		result, err = s.ig.ExchangeCode(ctx, code)
	default:
		return record.Platform, ErrUnknownPlatform
	}
	if err != nil {
		return record.Platform, err
	}

	token := &models.PlatformToken{
		UserID:          record.UserID,
		Platform:        record.Platform,
		AccountID:       result.AccountID,
		AccountName:     result.AccountName,
		AccountUsername: result.AccountUsername,
		ProfilePicture:  result.ProfilePicture,
		TokenExpiresAt:  result.ExpiresAt,
	}

	token.AccessToken, err = utils.Encrypt([]byte(result.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return record.Platform, err
	}
	if result.RefreshToken != "" {
		token.RefreshToken, err = utils.Encrypt([]byte(result.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return record.Platform, err
		}
	}

	if err := s.tr.Upsert(ctx, token); err != nil {
		return record.Platform, err
	}

	return record.Platform, nil
}

// AbortCallback burns the state without exchanging anything, so a denied or
// malformed callback cannot be replayed later.
func (s *connectService) AbortCallback(ctx context.Context, state string) {
	if state == "" {
		return
	}
	if _, err := s.st.Consume(ctx, state); err != nil {
		slog.Info(err.Error())
	}
}

func (s *connectService) Status(ctx context.Context, userID int64, platform string) (*transfer.ConnectionStatus, error) {
	if platform != models.PlatformYoutube && platform != models.PlatformInstagram {
		return nil, ErrUnknownPlatform
	}

	token, err := s.tr.Get(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return &transfer.ConnectionStatus{Connected: false}, nil
	}

	return &transfer.ConnectionStatus{
		Connected:       !TokenExpired(token),
		AccountID:       token.AccountID,
		AccountUsername: token.AccountUsername,
		ExpiresAt:       token.TokenExpiresAt,
		UpdatedAt:       &token.UpdatedAt,
	}, nil
}

func (s *connectService) Disconnect(ctx context.Context, userID int64, platform string) error {
	token, err := s.tr.Get(ctx, userID, platform)
	if err != nil {
		return err
	}
	if token == nil {
		return ErrNotConnected
	}

	// Best effort: a failed revocation must not keep the row around.
	if platform == models.PlatformYoutube && token.AccessToken != "" {
		accessToken, err := utils.Decrypt(token.AccessToken, []byte(s.cfg.SecretKey))
		if err == nil {
			if err := RevokeGoogleAccess(accessToken); err != nil {
				slog.Info(err.Error())
			}
		}
	}

	return s.tr.Delete(ctx, userID, platform)
}
