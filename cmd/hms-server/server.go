package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/hms/internal/config"
	"github.com/ehr/hms/internal/domain/admin"
	"github.com/ehr/hms/internal/domain/auditevent"
	"github.com/ehr/hms/internal/domain/billing"
	"github.com/ehr/hms/internal/domain/clinical"
	"github.com/ehr/hms/internal/domain/identity"
	"github.com/ehr/hms/internal/domain/medication"
	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/domain/scheduling"
	"github.com/ehr/hms/internal/platform/auth"
	"github.com/ehr/hms/internal/platform/db"
	"github.com/ehr/hms/internal/platform/middleware"
	"github.com/ehr/hms/internal/platform/persistence"
)

const shutdownTimeout = 10 * time.Second

func runServer(ctx context.Context, seed bool) error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logger
	logger := newLogger(cfg)
	ctx = logger.WithContext(ctx)

	// Database
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect to database")
		return err
	}
	defer store.Close()
	logger.Info().Str("driver", cfg.DBDriver).Msg("connected to database")

	if cfg.DBDriver == config.DriverSQLite {
		n, err := db.NewMigrator(store, db.Migrations(store.Dialect())).Up(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int("applied", n).Msg("sqlite migrations up to date")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	uow := records.NewFactory(store, persistence.WithMetrics(persistence.NewMetrics(reg)))

	if seed {
		res, err := runSeed(ctx, cfg, uow, "")
		if err != nil {
			return err
		}
		logger.Info().Int("departments", res.Departments).Bool("admin_created", res.AdminCreated).Msg("seed complete")
	}

	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL)
	e := newEcho(cfg, logger, store, reg, tokens)

	adminSvc := admin.NewService(uow, tokens)
	identitySvc := identity.NewService(uow)
	schedulingSvc := scheduling.NewService(uow)
	clinicalSvc := clinical.NewService(uow)
	medicationSvc := medication.NewService(uow)
	billingSvc := billing.NewService(uow)
	auditSvc := auditevent.NewService(uow)

	apiV1 := e.Group("/api/v1")
	admin.NewHandler(adminSvc).RegisterRoutes(apiV1)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(apiV1)
	medication.NewHandler(medicationSvc).RegisterRoutes(apiV1)
	billing.NewHandler(billingSvc).RegisterRoutes(apiV1)
	auditevent.NewHandler(auditSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newEcho builds the server with global middleware, health and metrics
// endpoints. Domain routes are registered by the caller.
func newEcho(cfg *config.Config, logger zerolog.Logger, store persistence.Store, reg *prometheus.Registry, tokens *auth.TokenIssuer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	e.Use(middleware.RateLimit(rateLimitCfg))

	// Auth middleware
	jwtCfg := tokens.Config()
	jwtCfg.Skipper = auth.AuthSkipper
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		logger.Warn().Msg("development auth mode: unauthenticated requests act as Admin")
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.GET("/health", db.HealthHandler(store))
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}
	return e
}
