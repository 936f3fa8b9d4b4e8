package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/vpnda/potpilot/pkg/config"
	"github.com/vpnda/potpilot/pkg/services"
)

const (
	// UserHeader carries the id of the signed in user, set by the auth proxy in front
	UserHeader = "X-User-Id"

	stateCookie = "monzo_oauth_state"
	userCookie  = "monzo_oauth_user"
	cookieTTL   = 5 * time.Minute

	accountsPage = "/dashboard/accounts"
)

type Options struct {
	Runner      *services.AutomationRunner
	Connections *services.ConnectionService
	Monzo       config.MonzoOptions
	AppURL      string
	// CronSecret guards the run trigger; empty leaves it open
	CronSecret string
}

// Server exposes the run trigger and the connection flow over HTTP
type Server struct {
	runner      *services.AutomationRunner
	connections *services.ConnectionService
	monzo       config.MonzoOptions
	appURL      string
	cronSecret  string
}

func New(opts Options) *Server {
	return &Server{
		runner:      opts.Runner,
		connections: opts.Connections,
		monzo:       opts.Monzo,
		appURL:      strings.TrimSuffix(opts.AppURL, "/"),
		cronSecret:  opts.CronSecret,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Group(func(cron chi.Router) {
		cron.Use(cronAuth(s.cronSecret))
		cron.Get("/api/cron/run-automations", s.runAutomations)
		cron.Post("/api/cron/run-automations", s.runAutomations)
	})

	r.Route("/api/auth/monzo", func(auth chi.Router) {
		auth.Get("/connect", s.connect)
		auth.Get("/callback", s.callback)
		auth.Get("/verify-pending", s.verifyPending)
		auth.Get("/check", s.check)
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
