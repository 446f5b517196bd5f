// Package server wires configuration, storage, identity and HTTP routing
// into a runnable server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/hackhub/internal/auth"
	"github.com/sakif/hackhub/internal/backend"
	"github.com/sakif/hackhub/internal/cache"
	"github.com/sakif/hackhub/internal/config"
	"github.com/sakif/hackhub/internal/handler"
	"github.com/sakif/hackhub/internal/identity"
	"github.com/sakif/hackhub/internal/identity/appwrite"
	"github.com/sakif/hackhub/internal/identity/oauthpw"
	"github.com/sakif/hackhub/internal/middleware"
	"github.com/sakif/hackhub/internal/preferences"
	sqliteRepo "github.com/sakif/hackhub/internal/repository/sqlite"
	"github.com/sakif/hackhub/internal/service"
)

// sweepInterval is how often idle browser sessions are evicted.
const sweepInterval = 5 * time.Minute

// Server owns every long-lived dependency and closes them on shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	db       *sqliteRepo.DB
	redis    *redis.Client // nil when the cache is in memory
	cache    *cache.SWR
	sessions *service.SessionRegistry
	tokens   *auth.TokenService
}

// New opens storage, builds the services and registers routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	store, err := s.cacheStore()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.cache = cache.New(store, cfg.CacheStaleAfter, logger)

	tokens, err := auth.NewTokenService(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	s.tokens = tokens

	factory, err := identityFactory(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	api := backend.New(cfg.APIURL, &http.Client{Timeout: cfg.HTTPTimeout}, logger)
	s.sessions = service.NewSessionRegistry(factory, api, cfg.SessionTTL, logger)
	aggregator := service.NewDashboardAggregator(api, s.cache, cfg.CacheNamespace, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sidebar := preferences.LoadSidebar(ctx, db, logger)

	s.setupRoutes(aggregator, sidebar)
	return s, nil
}

// cacheStore is Redis when REDIS_URL is set, otherwise process memory.
func (s *Server) cacheStore() (cache.Store, error) {
	if s.config.RedisURL == "" {
		return cache.NewMemoryStore(), nil
	}

	client, err := cache.Connect(context.Background(), s.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	s.redis = client
	// Entries outlive the staleness window so a stale value can still be
	// served while it revalidates.
	return cache.NewRedisStore(client, s.config.CacheNamespace+":", 12*s.config.CacheStaleAfter), nil
}

func identityFactory(cfg *config.Config) (identity.Factory, error) {
	switch cfg.IdentityProvider {
	case config.ProviderAppwrite:
		return appwrite.Factory(cfg.AppwriteEndpoint, cfg.AppwriteProjectID, cfg.HTTPTimeout), nil
	case config.ProviderOAuth:
		return oauthpw.Factory(oauthpw.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			TokenURL:     cfg.OAuthTokenURL,
			UserInfoURL:  cfg.OAuthUserInfoURL,
			RevokeURL:    cfg.OAuthRevokeURL,
			Scopes:       cfg.OAuthScopes,
			Timeout:      cfg.HTTPTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.IdentityProvider)
	}
}

func (s *Server) setupRoutes(aggregator *service.DashboardAggregator, sidebar *preferences.Sidebar) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	s.router.Handle("/metrics", promhttp.Handler())

	sessionHandler := handler.NewSessionHandler(s.logger)
	dashboardHandler := handler.NewDashboardHandler(aggregator, s.logger)
	preferenceHandler := handler.NewPreferenceHandler(sidebar, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(auth.Sessions(s.tokens, s.sessions, auth.CookieOptions{Secure: s.config.CookieSecure}, s.logger))

		r.Get("/session", sessionHandler.HandleGet)
		r.Post("/auth/login", sessionHandler.HandleLogin)
		r.Post("/auth/logout", sessionHandler.HandleLogout)
		r.Post("/auth/signup", sessionHandler.HandleSignup)
		r.Put("/profile", sessionHandler.HandleUpdateProfile)

		r.Get("/dashboard", dashboardHandler.HandleDashboard)
		r.Get("/dashboard/managed/{id}/stats", dashboardHandler.HandleManagedStats)

		r.Get("/preferences/sidebar", preferenceHandler.HandleGetSidebar)
		r.Put("/preferences/sidebar", preferenceHandler.HandleSetSidebar)
		r.Post("/preferences/sidebar/toggle", preferenceHandler.HandleToggleSidebar)
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests and
// background cache refreshes before closing storage.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + s.config.HTTPTimeout,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go s.sessions.Run(sweepCtx, sweepInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("identity_provider", s.config.IdentityProvider),
			slog.Bool("redis_cache", s.redis != nil),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases storage. Pending background revalidations finish first.
func (s *Server) Close() {
	if s.cache != nil {
		s.cache.Wait()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("closing redis failed", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database failed", slog.String("error", err.Error()))
	}
}
