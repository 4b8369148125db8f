package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"

	"vivero/backend/internal/cache"
	"vivero/backend/internal/config"
	"vivero/backend/internal/httpapi"
	"vivero/backend/internal/logging"
	"vivero/backend/internal/metrics"
	"vivero/backend/internal/service"
	"vivero/backend/internal/store"
	"vivero/backend/internal/store/memory"
	"vivero/backend/internal/store/sqlstore"
	"vivero/backend/internal/ticket"
)

func main() {
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("repository unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	productCache := cache.ProductCache(cache.NoopProductCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisProductCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop cache")
		} else {
			productCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Str("addr", cfg.RedisAddr).Msg("cache: redis")
		}
	} else {
		log.Info().Msg("cache: noop")
	}

	notifiers := ticket.Multi{ticket.NewLogNotifier(log.Logger)}
	kafkaNotifier, err := ticket.NewKafkaNotifier(cfg.KafkaBrokers, cfg.TicketTopic)
	switch {
	case errors.Is(err, ticket.ErrKafkaDisabled):
		log.Info().Msg("tickets: log only")
	case err != nil:
		log.Warn().Err(err).Msg("kafka notifier unavailable, tickets are logged only")
	default:
		notifiers = append(notifiers, kafkaNotifier)
		closers = append(closers, kafkaNotifier.Close)
		log.Info().Str("topic", cfg.TicketTopic).Msg("tickets: kafka")
	}

	m := metrics.New()
	svc := service.New(repo,
		service.WithCache(productCache, time.Duration(cfg.StockCacheTTLSeconds)*time.Second),
		service.WithNotifier(notifiers),
		service.WithMetrics(m),
		service.WithRetryPolicy(service.RetryPolicy{
			MaxAttempts: cfg.CommitMaxAttempts,
			BaseDelay:   time.Duration(cfg.CommitRetryDelayMS) * time.Millisecond,
		}),
		service.WithNotesPolicy(cfg.RequireNotesOnCriticalVariance),
		service.WithLocation(cfg.Location),
	)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, repo)
	api := httpapi.New(svc, auth, m, cfg.AllowedOrigin)

	// WriteTimeout leaves room for a commit that uses its whole retry budget.
	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("vivero PoS backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

// openRepository picks the store from DATABASE_URL: empty selects the seeded
// in-memory store, otherwise a PostgreSQL or SQLite database is opened and
// migrated. The returned close func is nil for the memory store.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		log.Info().Msg("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}

	db, err := sqlstore.Open(ctx, cfg.DatabaseURL, sqlstore.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		BusyTimeout:  time.Duration(cfg.SQLiteBusyTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if cfg.SeedDemoData {
		if err := db.SeedDemo(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("seed: %w", err)
		}
	}
	log.Info().Str("dialect", db.Dialect().String()).Msg("repository: sql")
	return db, db.Close, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"222222": true, "333333": true, "444444": true, "555555": true,
		"666666": true, "777777": true, "888888": true, "999999": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
