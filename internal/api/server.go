package api

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"supplywatcher/internal/config"
	"supplywatcher/internal/logging"
	"supplywatcher/internal/settings"
	"supplywatcher/internal/supply"
)

// SettingsStore is the owner-gated configuration the API exposes.
type SettingsStore interface {
	supply.ConfigSource
	Owner() common.Address
	State() settings.State
	SetTarget(caller, target common.Address) error
	SetThreshold(caller common.Address, value *big.Int) error
}

// Pinger reports backing store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WindowSource exposes the live evaluation window.
type WindowSource interface {
	Window() [][]byte
}

// Server hosts the admin and metrics endpoints.
type Server struct {
	settings     SettingsStore
	pinger       Pinger
	windowSource WindowSource
	logger       zerolog.Logger
	now          func() time.Time

	cfg     config.ServerConfig
	handler http.Handler
}

// NewServer builds the router. pinger and window may be nil.
func NewServer(cfg config.ServerConfig, store SettingsStore, pinger Pinger, window WindowSource, logger zerolog.Logger) *Server {
	s := &Server{
		settings:     store,
		pinger:       pinger,
		windowSource: window,
		logger:       logging.Component(logger, "api"),
		now:          time.Now,
		cfg:          cfg,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(s.logger))
	r.Use(RequestLogger(s.logger))
	r.Use(Metrics())

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", s.health)
	r.Get("/readyz", s.ready)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/settings", s.getSettings)
		r.Put("/settings/target", s.putTarget)
		r.Put("/settings/threshold", s.putThreshold)
		r.Get("/window", s.window)
		r.Post("/evaluate", s.evaluate)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}
