package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/jobpath/jobpath-server/calendar"
	"github.com/jobpath/jobpath-server/internal/config"
	"github.com/jobpath/jobpath-server/mfa"
	oauthsvc "github.com/jobpath/jobpath-server/oauth"
	"github.com/jobpath/jobpath-server/oauth/flowrepo"
	"github.com/jobpath/jobpath-server/oauth/tokenrepo"
	"github.com/jobpath/jobpath-server/rpcstore"
	"github.com/jobpath/jobpath-server/server"
	"github.com/jobpath/jobpath-server/tracker"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	handler, err := buildServer(context.Background(), c)
	if err != nil {
		return fmt.Errorf("buildServer: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// buildServer wires the repositories and services. With REDIS_ADDR set the
// flow state and operational store live in Redis; otherwise everything is
// process local.
func buildServer(ctx context.Context, c config.Config) (*server.Server, error) {
	var (
		flows flowrepo.Repo
		store rpcstore.Store
	)
	tokens := tokenrepo.NewInMemoryRepo()

	if addr := c.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		flows = flowrepo.NewRedisRepo(client, c.GetFlowStateTTL())
		store = rpcstore.NewRedisStore(client, rpcstore.WithRedisTokenCounter(tokens))
		zlog.Info().Str("addr", addr).Msg("using redis-backed stores")
	} else {
		flows = flowrepo.NewInMemoryRepo(c.GetFlowStateTTL())
		store = rpcstore.NewInMemoryStore(rpcstore.WithTokenCounter(tokens))
		zlog.Info().Msg("using in-memory stores")
	}

	oauthOptions := []oauthsvc.Option{}
	if verifier, err := server.NewOIDCVerifier(ctx, c.GetGoogleIssuer(), c.GetGoogleClientID()); err != nil {
		// Discovery needs the network; keep starting up without ID-token
		// verification rather than crash-looping offline.
		zlog.Warn().Err(err).Msg("oidc discovery failed, id-token verification disabled")
	} else {
		oauthOptions = append(oauthOptions, oauthsvc.WithIDTokenVerifier(verifier))
	}

	oauthService, err := oauthsvc.NewService(oauthsvc.Config{
		ClientID:      c.GetGoogleClientID(),
		ClientSecret:  c.GetGoogleClientSecret(),
		RedirectURL:   c.GetGoogleRedirectURL(),
		Scopes:        c.GetGoogleScopes(),
		AuthURL:       c.GetGoogleAuthURL(),
		TokenURL:      c.GetGoogleTokenURL(),
		RefreshMargin: c.GetTokenRefreshMargin(),
	}, flows, tokens, oauthOptions...)
	if err != nil {
		return nil, fmt.Errorf("oauth service: %w", err)
	}

	mfaService, err := mfa.NewService(mfa.Config{
		Issuer:          c.GetMFAIssuer(),
		BackupCodeCount: c.GetBackupCodeCount(),
		BcryptCost:      c.GetBackupCodeCost(),
	},
		mfa.NewInMemoryFactorRepo(),
		mfa.NewInMemoryBackupCodeRepo(),
		mfa.NewInMemoryChallengeRepo(mfa.DefaultChallengeTTL),
		mfa.WithRateLimiter(store),
	)
	if err != nil {
		return nil, fmt.Errorf("mfa service: %w", err)
	}

	calendarClient := calendar.NewClient(oauthService, calendar.WithBaseURL(c.GetCalendarBaseURL()))
	trackerService := tracker.NewService(
		tracker.NewInMemoryApplicationRepo(),
		tracker.NewInMemoryInterviewRepo(),
		tracker.NewInMemoryContactRepo(),
		tracker.NewInMemoryProgressRepo(),
		tracker.WithCalendarSync(calendarClient),
	)

	return server.New(c, server.Services{
		OAuth:    oauthService,
		Calendar: calendarClient,
		MFA:      mfaService,
		Tracker:  trackerService,
		Store:    store,
	})
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
