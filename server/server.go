// Package server exposes the HTTP API: the Google Calendar link flow, the
// calendar proxy, MFA management and the job-search tracker endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/jobpath/jobpath-server/calendar"
	"github.com/jobpath/jobpath-server/internal/config"
	"github.com/jobpath/jobpath-server/mfa"
	oauthsvc "github.com/jobpath/jobpath-server/oauth"
	"github.com/jobpath/jobpath-server/rpcstore"
	"github.com/jobpath/jobpath-server/tracker"
)

// Services bundles the domain services the handlers dispatch to.
type Services struct {
	OAuth    *oauthsvc.Service
	Calendar *calendar.Client
	MFA      *mfa.Service
	Tracker  *tracker.Service
	Store    rpcstore.Store
}

type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config

	oauth    *oauthsvc.Service
	calendar *calendar.Client
	mfa      *mfa.Service
	tracker  *tracker.Service
	store    rpcstore.Store
}

func New(config config.Config, services Services) (*Server, error) {
	if services.OAuth == nil || services.MFA == nil || services.Tracker == nil || services.Store == nil {
		return nil, fmt.Errorf("[Server New] missing required services")
	}
	// An empty key would accept tokens signed with the empty string, so it
	// is a startup failure, never a default.
	if len(config.GetJWTSigningKey()) == 0 {
		return nil, fmt.Errorf("[Server New] JWT signing key is not configured")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   config,
		oauth:    services.OAuth,
		calendar: services.Calendar,
		mfa:      services.MFA,
		tracker:  services.Tracker,
		store:    services.Store,
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

// NewOIDCVerifier discovers the provider and builds an ID-token verifier for
// the configured client. Callers pass it to the oauth service.
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("[NewOIDCVerifier] provider discovery: %w", err)
	}
	return provider.Verifier(&oidc.Config{ClientID: clientID}), nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
