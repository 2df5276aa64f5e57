// Package oauth implements the Google Calendar link orchestrator: it builds
// the authorization URL, validates the provider callback, exchanges and
// refreshes tokens, and revokes access. The flow is
//
//	idle -> authorizing -> awaiting_callback -> exchanging -> linked
//	                                   (refreshing <-> linked) -> revoked
//
// and the current state is carried by what exists in the two repositories: a
// pending flow state means a callback is awaited, a stored token means the
// account is linked.
package oauth

import (
	"context"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	apperrors "github.com/jobpath/jobpath-server/internal/errors"
	"github.com/jobpath/jobpath-server/oauth/flowrepo"
	"github.com/jobpath/jobpath-server/oauth/tokenrepo"
	"github.com/jobpath/jobpath-server/pkce"
)

// ProviderGoogle is the only provider this service links.
const ProviderGoogle = "google"

const defaultRefreshMargin = 30 * time.Second

var (
	// ErrNotLinked means no usable token exists and the caller must
	// (re-)authorize.
	ErrNotLinked = apperrors.New(apperrors.KindToken, "calendar not linked")
	// ErrCallbackInvalid covers every callback rejection: missing code,
	// state mismatch, provider error, nonce mismatch. The message is
	// deliberately generic so flow internals are not leaked to an attacker.
	ErrCallbackInvalid = apperrors.New(apperrors.KindValidation, "authentication failed")
)

// Config holds the provider client settings. ClientID and ClientSecret are
// required; the secret stays server-side only.
type Config struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	Scopes        []string
	AuthURL       string
	TokenURL      string
	RefreshMargin time.Duration
}

// IDTokenVerifier verifies the signature and claims of a raw ID token.
// Satisfied by *oidc.IDTokenVerifier; nil disables ID-token verification
// (tests, or deployments without OIDC discovery).
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Service orchestrates the OAuth flow for one provider.
type Service struct {
	oauthCfg      *oauth2.Config
	flows         flowrepo.Repo
	tokens        tokenrepo.Repo
	verifier      IDTokenVerifier
	refreshMargin time.Duration
	nowTime       func() time.Time
}

type Option func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithIDTokenVerifier enables ID-token verification on callback.
func WithIDTokenVerifier(v IDTokenVerifier) Option {
	return func(s *Service) {
		s.verifier = v
	}
}

// NewService validates the provider configuration and builds the
// orchestrator. Missing client credentials are a fatal configuration error.
func NewService(cfg Config, flows flowrepo.Repo, tokens tokenrepo.Repo, options ...Option) (*Service, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, apperrors.New(apperrors.KindConfig, "google client credentials are not configured")
	}
	if cfg.RedirectURL == "" {
		return nil, apperrors.New(apperrors.KindConfig, "google redirect URL is not configured")
	}
	if flows == nil {
		return nil, errors.New("[NewService] flow repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token repo is required")
	}

	margin := cfg.RefreshMargin
	if margin <= 0 {
		margin = defaultRefreshMargin
	}

	s := &Service{
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		flows:         flows,
		tokens:        tokens,
		refreshMargin: margin,
		nowTime:       time.Now,
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// Initiate starts a new authorization attempt for the user and returns the
// provider authorization URL to navigate to. The PKCE verifier and state are
// stored before the URL is handed out, so the callback can always find them.
// Initiating again before the first flow completes stores a fresh state; the
// stale flow's eventual callback then fails state validation.
func (s *Service) Initiate(ctx context.Context, userID, returnURL string) (string, error) {
	if userID == "" {
		return "", errors.New("[Initiate] user ID is required")
	}

	verifier, err := pkce.GenerateVerifier(pkce.DefaultVerifierLength)
	if err != nil {
		return "", errors.Wrap(err, "[Initiate] verifier generation")
	}
	state, err := pkce.GenerateState()
	if err != nil {
		return "", errors.Wrap(err, "[Initiate] state generation")
	}
	nonce, err := pkce.GenerateNonce()
	if err != nil {
		return "", errors.Wrap(err, "[Initiate] nonce generation")
	}

	if err := s.flows.Put(ctx, &flowrepo.FlowState{
		State:        state,
		UserID:       userID,
		CodeVerifier: verifier,
		Nonce:        nonce,
		ReturnURL:    returnURL,
		CreatedAt:    s.nowTime(),
	}); err != nil {
		return "", errors.Wrap(err, "[Initiate] failed to store flow state")
	}

	// access_type=offline and prompt=consent guarantee a refresh token is
	// issued even on repeat authorizations.
	authURL := s.oauthCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("code_challenge", pkce.DeriveChallenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("nonce", nonce),
	)
	return authURL, nil
}

// HandleCallback validates the provider redirect and exchanges the
// authorization code for tokens. Any validation failure clears the pending
// flow state and reports the generic ErrCallbackInvalid. On success the
// token is persisted (upsert by user+provider) and the flow's return URL is
// returned for the caller to redirect to.
func (s *Service) HandleCallback(ctx context.Context, state, code, errorParam string) (string, error) {
	if state == "" {
		return "", ErrCallbackInvalid
	}

	// Consume the flow state regardless of outcome: a denied consent or a
	// bad code must not leave a reusable pending attempt behind.
	flow, flowErr := s.flows.Take(ctx, state)

	if errorParam != "" {
		log.Warn().Str("error", errorParam).Msg("authorization denied by provider")
		return "", ErrCallbackInvalid
	}
	if code == "" {
		return "", ErrCallbackInvalid
	}
	if flowErr != nil || flow == nil {
		// Unknown or expired state: potential CSRF, abort without exchange.
		log.Warn().Msg("oauth callback with unknown state")
		return "", ErrCallbackInvalid
	}

	tok, err := s.oauthCfg.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", flow.CodeVerifier),
	)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindToken, "token exchange failed", err)
	}

	if s.verifier != nil {
		rawIDToken, ok := tok.Extra("id_token").(string)
		if !ok {
			return "", ErrCallbackInvalid
		}
		idToken, err := s.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return "", apperrors.Wrap(apperrors.KindValidation, "authentication failed", err)
		}
		var claims struct {
			Nonce string `json:"nonce"`
		}
		if err := idToken.Claims(&claims); err != nil || claims.Nonce != flow.Nonce {
			return "", ErrCallbackInvalid
		}
	}

	if err := s.tokens.Upsert(ctx, &tokenrepo.StoredToken{
		UserID:       flow.UserID,
		Provider:     ProviderGoogle,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       s.oauthCfg.Scopes,
		UpdatedAt:    s.nowTime(),
	}); err != nil {
		return "", errors.Wrap(err, "[HandleCallback] failed to store token")
	}

	log.Info().Str("user_id", flow.UserID).Msg("google account linked")
	return flow.ReturnURL, nil
}

// ValidToken returns a usable access token for the user, refreshing it first
// when expired. No stored token, or an expired token without a refresh
// token, yields ErrNotLinked and never touches the network.
func (s *Service) ValidToken(ctx context.Context, userID string) (*tokenrepo.StoredToken, error) {
	tok, err := s.tokens.Get(ctx, userID, ProviderGoogle)
	if err != nil {
		if errors.Is(err, tokenrepo.ErrNotFound) {
			return nil, ErrNotLinked
		}
		return nil, errors.Wrap(err, "[ValidToken] token lookup")
	}

	if !tok.Expired(s.nowTime(), s.refreshMargin) {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, ErrNotLinked
	}
	return s.Refresh(ctx, tok)
}

// Refresh exchanges the refresh token for a new access token and persists
// it. The provider normally reuses the refresh token; a rotated one is
// persisted when returned. A permanently rejected refresh token (revoked or
// expired grant) deletes the stored record so the caller re-authorizes.
//
// Two concurrent refreshes of the same token both succeed upstream and the
// second write simply overwrites with an equally valid token; no lock is
// held here.
func (s *Service) Refresh(ctx context.Context, tok *tokenrepo.StoredToken) (*tokenrepo.StoredToken, error) {
	src := s.oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		if isPermanentRefreshError(err) {
			log.Warn().Str("user_id", tok.UserID).Msg("refresh token revoked, unlinking")
			_ = s.tokens.Delete(ctx, tok.UserID, tok.Provider)
			return nil, ErrNotLinked
		}
		return nil, apperrors.Wrap(apperrors.KindToken, "token refresh failed", err)
	}

	updated := *tok
	updated.AccessToken = fresh.AccessToken
	updated.TokenType = fresh.TokenType
	updated.Expiry = fresh.Expiry
	updated.UpdatedAt = s.nowTime()
	if fresh.RefreshToken != "" && fresh.RefreshToken != tok.RefreshToken {
		updated.RefreshToken = fresh.RefreshToken
	}

	if err := s.tokens.Upsert(ctx, &updated); err != nil {
		return nil, errors.Wrap(err, "[Refresh] failed to store refreshed token")
	}
	return &updated, nil
}

// AccessToken returns a usable bearer token for the user. It satisfies the
// calendar client's token source.
func (s *Service) AccessToken(ctx context.Context, userID string) (string, error) {
	tok, err := s.ValidToken(ctx, userID)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Revoke deletes the stored token for the user. Revoking when nothing is
// stored is a no-op success.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	if err := s.tokens.Delete(ctx, userID, ProviderGoogle); err != nil {
		return errors.Wrap(err, "[Revoke] failed to delete token")
	}
	return nil
}

// Linked reports whether a token record exists for the user, without
// refreshing it.
func (s *Service) Linked(ctx context.Context, userID string) (bool, error) {
	_, err := s.tokens.Get(ctx, userID, ProviderGoogle)
	if errors.Is(err, tokenrepo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Linked] token lookup")
	}
	return true, nil
}

// isPermanentRefreshError distinguishes a revoked/expired grant, which
// requires re-authorization, from transient transport failures.
func isPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"invalid_grant",
		"invalid_client",
		"unauthorized_client",
		"token has been expired or revoked",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
