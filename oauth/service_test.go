package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/jobpath/jobpath-server/oauth/flowrepo"
	"github.com/jobpath/jobpath-server/oauth/tokenrepo"
	"github.com/jobpath/jobpath-server/pkce"
)

type tokenEndpoint struct {
	server   *httptest.Server
	requests atomic.Int64
	lastForm url.Values
	respond  func(w http.ResponseWriter, r *http.Request)
}

func newTokenEndpoint(t *testing.T) *tokenEndpoint {
	t.Helper()
	ep := &tokenEndpoint{}
	ep.respond = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-access","token_type":"Bearer","refresh_token":"","expires_in":3600}`))
	}
	ep.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ep.requests.Add(1)
		require.NoError(t, r.ParseForm())
		ep.lastForm = r.PostForm
		ep.respond(w, r)
	}))
	t.Cleanup(ep.server.Close)
	return ep
}

func newTestService(t *testing.T, ep *tokenEndpoint, options ...Option) (*Service, flowrepo.Repo, tokenrepo.Repo) {
	t.Helper()
	flows := flowrepo.NewInMemoryRepo(flowrepo.DefaultTTL)
	tokens := tokenrepo.NewInMemoryRepo()
	cfg := Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://app.example.com/oauth/google/callback",
		Scopes:       []string{"openid", "email", "https://www.googleapis.com/auth/calendar.events"},
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     ep.server.URL,
	}
	svc, err := NewService(cfg, flows, tokens, options...)
	require.NoError(t, err)
	return svc, flows, tokens
}

func TestNewService(t *testing.T) {
	ep := newTokenEndpoint(t)

	t.Run("requires client credentials", func(t *testing.T) {
		_, err := NewService(Config{RedirectURL: "https://x"}, flowrepo.NewInMemoryRepo(flowrepo.DefaultTTL), tokenrepo.NewInMemoryRepo())
		require.Error(t, err)
	})

	t.Run("requires repositories", func(t *testing.T) {
		_, err := NewService(Config{
			ClientID: "id", ClientSecret: "secret", RedirectURL: "https://x", TokenURL: ep.server.URL,
		}, nil, nil)
		require.Error(t, err)
	})
}

func TestInitiate(t *testing.T) {
	ep := newTokenEndpoint(t)
	svc, flows, _ := newTestService(t, ep)
	ctx := context.Background()

	t.Run("authorization URL carries PKCE and offline access parameters", func(t *testing.T) {
		rawURL, err := svc.Initiate(ctx, "user-1", "/settings")
		require.NoError(t, err)

		u, err := url.Parse(rawURL)
		require.NoError(t, err)
		q := u.Query()
		require.Equal(t, "client-id", q.Get("client_id"))
		require.Equal(t, "code", q.Get("response_type"))
		require.Equal(t, "offline", q.Get("access_type"))
		require.Equal(t, "consent", q.Get("prompt"))
		require.Equal(t, "S256", q.Get("code_challenge_method"))
		require.NotEmpty(t, q.Get("nonce"))
		require.NotEmpty(t, q.Get("state"))

		// The challenge in the URL must derive from the stored verifier.
		flow, err := flows.Take(ctx, q.Get("state"))
		require.NoError(t, err)
		require.Equal(t, "user-1", flow.UserID)
		require.Equal(t, "/settings", flow.ReturnURL)
		require.Equal(t, pkce.DeriveChallenge(flow.CodeVerifier), q.Get("code_challenge"))
	})

	t.Run("state is stored before the URL is returned", func(t *testing.T) {
		rawURL, err := svc.Initiate(ctx, "user-2", "/")
		require.NoError(t, err)
		u, err := url.Parse(rawURL)
		require.NoError(t, err)
		_, err = flows.Take(ctx, u.Query().Get("state"))
		require.NoError(t, err)
	})

	t.Run("requires a user", func(t *testing.T) {
		_, err := svc.Initiate(ctx, "", "/")
		require.Error(t, err)
	})
}

func initiateFlow(t *testing.T, svc *Service, userID string) string {
	t.Helper()
	rawURL, err := svc.Initiate(context.Background(), userID, "/dashboard")
	require.NoError(t, err)
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestHandleCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("exchanges the code with the stored verifier and persists the token", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		ep.respond = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"access-1","token_type":"Bearer","refresh_token":"refresh-1","expires_in":3600}`))
		}
		svc, _, tokens := newTestService(t, ep)
		state := initiateFlow(t, svc, "user-1")

		returnURL, err := svc.HandleCallback(ctx, state, "auth-code", "")
		require.NoError(t, err)
		require.Equal(t, "/dashboard", returnURL)
		require.Equal(t, "auth-code", ep.lastForm.Get("code"))
		require.NotEmpty(t, ep.lastForm.Get("code_verifier"))

		stored, err := tokens.Get(ctx, "user-1", ProviderGoogle)
		require.NoError(t, err)
		require.Equal(t, "access-1", stored.AccessToken)
		require.Equal(t, "refresh-1", stored.RefreshToken)
	})

	t.Run("denied consent fails without exchanging and consumes the flow", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		svc, flows, _ := newTestService(t, ep)
		state := initiateFlow(t, svc, "user-1")

		_, err := svc.HandleCallback(ctx, state, "", "access_denied")
		require.ErrorIs(t, err, ErrCallbackInvalid)
		require.Zero(t, ep.requests.Load())

		_, err = flows.Take(ctx, state)
		require.ErrorIs(t, err, flowrepo.ErrNotFound)
	})

	t.Run("unknown state is rejected without exchanging", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		svc, _, _ := newTestService(t, ep)

		_, err := svc.HandleCallback(ctx, "forged-state", "auth-code", "")
		require.ErrorIs(t, err, ErrCallbackInvalid)
		require.Zero(t, ep.requests.Load())
	})

	t.Run("state cannot be replayed", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		svc, _, _ := newTestService(t, ep)
		state := initiateFlow(t, svc, "user-1")

		_, err := svc.HandleCallback(ctx, state, "auth-code", "")
		require.NoError(t, err)
		_, err = svc.HandleCallback(ctx, state, "auth-code", "")
		require.ErrorIs(t, err, ErrCallbackInvalid)
	})

	t.Run("missing code is rejected", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		svc, _, _ := newTestService(t, ep)
		state := initiateFlow(t, svc, "user-1")

		_, err := svc.HandleCallback(ctx, state, "", "")
		require.ErrorIs(t, err, ErrCallbackInvalid)
	})
}

func TestValidToken(t *testing.T) {
	ctx := context.Background()

	t.Run("unexpired token is returned without any network call", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		svc, _, tokens := newTestService(t, ep)
		require.NoError(t, tokens.Upsert(ctx, &tokenrepo.StoredToken{
			UserID: "user-1", Provider: ProviderGoogle,
			AccessToken: "live", RefreshToken: "refresh-1",
			Expiry: time.Now().Add(time.Hour),
		}))

		tok, err := svc.ValidToken(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, "live", tok.AccessToken)
		require.Zero(t, ep.requests.Load())
	})

	t.Run("expired token triggers exactly one refresh", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		svc, _, tokens := newTestService(t, ep)
		require.NoError(t, tokens.Upsert(ctx, &tokenrepo.StoredToken{
			UserID: "user-1", Provider: ProviderGoogle,
			AccessToken: "stale", RefreshToken: "refresh-1",
			Expiry: time.Now().Add(-time.Minute),
		}))

		tok, err := svc.ValidToken(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, "fresh-access", tok.AccessToken)
		require.Equal(t, int64(1), ep.requests.Load())
		require.Equal(t, "refresh_token", ep.lastForm.Get("grant_type"))
		require.Equal(t, "refresh-1", ep.lastForm.Get("refresh_token"))

		// Refresh token is kept when the provider does not rotate it.
		require.Equal(t, "refresh-1", tok.RefreshToken)

		stored, err := tokens.Get(ctx, "user-1", ProviderGoogle)
		require.NoError(t, err)
		require.Equal(t, "fresh-access", stored.AccessToken)
	})

	t.Run("token inside the refresh margin is refreshed early", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		svc, _, tokens := newTestService(t, ep)
		require.NoError(t, tokens.Upsert(ctx, &tokenrepo.StoredToken{
			UserID: "user-1", Provider: ProviderGoogle,
			AccessToken: "almost-stale", RefreshToken: "refresh-1",
			Expiry: time.Now().Add(10 * time.Second),
		}))

		_, err := svc.ValidToken(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, int64(1), ep.requests.Load())
	})

	t.Run("rotated refresh token is persisted", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		ep.respond = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"fresh-access","token_type":"Bearer","refresh_token":"refresh-2","expires_in":3600}`))
		}
		svc, _, tokens := newTestService(t, ep)
		require.NoError(t, tokens.Upsert(ctx, &tokenrepo.StoredToken{
			UserID: "user-1", Provider: ProviderGoogle,
			AccessToken: "stale", RefreshToken: "refresh-1",
			Expiry: time.Now().Add(-time.Minute),
		}))

		tok, err := svc.ValidToken(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, "refresh-2", tok.RefreshToken)

		stored, err := tokens.Get(ctx, "user-1", ProviderGoogle)
		require.NoError(t, err)
		require.Equal(t, "refresh-2", stored.RefreshToken)
	})

	t.Run("expired token without refresh token means not linked, no network call", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		svc, _, tokens := newTestService(t, ep)
		require.NoError(t, tokens.Upsert(ctx, &tokenrepo.StoredToken{
			UserID: "user-1", Provider: ProviderGoogle,
			AccessToken: "stale", RefreshToken: "",
			Expiry: time.Now().Add(-time.Minute),
		}))

		_, err := svc.ValidToken(ctx, "user-1")
		require.ErrorIs(t, err, ErrNotLinked)
		require.Zero(t, ep.requests.Load())
	})

	t.Run("no stored token means not linked", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		svc, _, _ := newTestService(t, ep)

		_, err := svc.ValidToken(ctx, "nobody")
		require.ErrorIs(t, err, ErrNotLinked)
		require.Zero(t, ep.requests.Load())
	})

	t.Run("revoked grant unlinks the account", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		ep.respond = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
		}
		svc, _, tokens := newTestService(t, ep)
		require.NoError(t, tokens.Upsert(ctx, &tokenrepo.StoredToken{
			UserID: "user-1", Provider: ProviderGoogle,
			AccessToken: "stale", RefreshToken: "revoked",
			Expiry: time.Now().Add(-time.Minute),
		}))

		_, err := svc.ValidToken(ctx, "user-1")
		require.ErrorIs(t, err, ErrNotLinked)

		_, err = tokens.Get(ctx, "user-1", ProviderGoogle)
		require.ErrorIs(t, err, tokenrepo.ErrNotFound)
	})

	t.Run("transient refresh failure keeps the stored token", func(t *testing.T) {
		ep := newTokenEndpoint(t)
		ep.respond = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}
		svc, _, tokens := newTestService(t, ep)
		require.NoError(t, tokens.Upsert(ctx, &tokenrepo.StoredToken{
			UserID: "user-1", Provider: ProviderGoogle,
			AccessToken: "stale", RefreshToken: "refresh-1",
			Expiry: time.Now().Add(-time.Minute),
		}))

		_, err := svc.ValidToken(ctx, "user-1")
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrNotLinked))

		stored, err := tokens.Get(ctx, "user-1", ProviderGoogle)
		require.NoError(t, err)
		require.Equal(t, "refresh-1", stored.RefreshToken)
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	ep := newTokenEndpoint(t)
	svc, _, tokens := newTestService(t, ep)

	t.Run("removes the stored token", func(t *testing.T) {
		require.NoError(t, tokens.Upsert(ctx, &tokenrepo.StoredToken{
			UserID: "user-1", Provider: ProviderGoogle, AccessToken: "live",
			Expiry: time.Now().Add(time.Hour),
		}))
		require.NoError(t, svc.Revoke(ctx, "user-1"))
		linked, err := svc.Linked(ctx, "user-1")
		require.NoError(t, err)
		require.False(t, linked)
	})

	t.Run("revoking twice succeeds", func(t *testing.T) {
		require.NoError(t, svc.Revoke(ctx, "user-1"))
		require.NoError(t, svc.Revoke(ctx, "user-1"))
	})
}
