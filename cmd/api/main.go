package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lesson-calendar-api/api/swagger"
	"github.com/noah-isme/lesson-calendar-api/internal/handler"
	"github.com/noah-isme/lesson-calendar-api/internal/middleware"
	"github.com/noah-isme/lesson-calendar-api/internal/repository"
	"github.com/noah-isme/lesson-calendar-api/internal/service"
	"github.com/noah-isme/lesson-calendar-api/migrations"
	"github.com/noah-isme/lesson-calendar-api/pkg/cache"
	"github.com/noah-isme/lesson-calendar-api/pkg/config"
	"github.com/noah-isme/lesson-calendar-api/pkg/database"
	"github.com/noah-isme/lesson-calendar-api/pkg/i18n"
	"github.com/noah-isme/lesson-calendar-api/pkg/logger"
)

// @title Lesson Calendar API
// @version 1.0.0
// @description Teachers publish weekly lesson calendars, students book slots by calendar code.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Migrate.OnStart {
		migrator, err := database.NewMigrator(db.DB, migrations.FS, logr)
		if err != nil {
			return err
		}
		if err := migrator.Up(ctx); err != nil {
			return err
		}
	}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		client, err := cache.NewRedis(pingCtx, cfg.Redis)
		cancel()
		if err != nil {
			logr.Warn("availability cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	translator, err := i18n.New()
	if err != nil {
		return fmt.Errorf("init translator: %w", err)
	}
	validate := validator.New()
	if err := translator.RegisterValidator(validate); err != nil {
		return fmt.Errorf("register validator translations: %w", err)
	}

	calendarRepo := repository.NewCalendarRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)

	calendarSvc := service.NewCalendarService(calendarRepo, slotRepo, bookingRepo, cacheSvc, validate, logr, nil)
	bookingSvc := service.NewBookingService(bookingRepo, calendarRepo, cacheSvc, metrics, validate, logr, service.BookingConfig{
		LeadTime:    cfg.Booking.LeadTime,
		MaxAttempts: cfg.Booking.MaxAttempts,
	})
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, calendarRepo, slotRepo, bookingRepo, cacheSvc, metrics, validate, logr, service.AvailabilityConfig{
		MaxAttempts: cfg.Booking.MaxAttempts,
		CacheTTL:    cfg.Cache.TTL,
	})
	rosterSvc := service.NewRosterService(calendarRepo, bookingRepo, validate, logr, nil, nil)
	authSvc := service.NewAuthService(service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	limiter := middleware.NewRateLimiter(cfg.Booking.RateLimit, cfg.Booking.RateInterval)
	go limiter.Run(ctx.Done())

	router := newRouter(routerDeps{
		cfg:          cfg,
		logger:       logr,
		translator:   translator,
		metrics:      metrics,
		auth:         authSvc,
		limiter:      limiter,
		ops:          handler.NewMetricsHandler(metrics, db),
		calendars:    handler.NewCalendarHandler(calendarSvc),
		availability: handler.NewAvailabilityHandler(availabilitySvc),
		bookings:     handler.NewBookingHandler(bookingSvc, rosterSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
