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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mealdesk/api/internal/clock"
	"github.com/mealdesk/api/internal/config"
	"github.com/mealdesk/api/internal/database"
	"github.com/mealdesk/api/internal/logger"
	"github.com/mealdesk/api/internal/middleware"
	"github.com/mealdesk/api/internal/notify"
	"github.com/mealdesk/api/internal/router"
	"github.com/mealdesk/api/internal/ruleset"
	"github.com/mealdesk/api/internal/ws"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}
	log.Info("connected to database")

	queries := database.New(pool)
	deps := router.Deps{
		Pool:    pool,
		Queries: queries,
		Hub:     ws.NewHub(),
		Limiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Clock:   clock.NewSystem(),
	}

	if cfg.RulesFile != "" {
		rules, err := ruleset.LoadFile(cfg.RulesFile)
		if err != nil {
			return err
		}
		static, err := ruleset.NewStatic(rules)
		if err != nil {
			return err
		}
		deps.Rules = static
		log.Info("booking rules loaded from file", zap.String("path", cfg.RulesFile), zap.Int("meal_types", len(rules)))
	} else {
		cache := ruleset.NewCache(queries, cfg.RulesCacheTTL)
		deps.Rules = cache
		deps.RuleEditor = ruleset.NewService(pool, func(db database.DBTX) ruleset.WriteStore {
			return database.New(db)
		}, cache)
		log.Info("booking rules served from database", zap.Duration("cache_ttl", cfg.RulesCacheTTL))
	}

	notifiers := notify.Multi{deps.Hub}
	if cfg.RabbitMQURL != "" {
		pub, err := notify.DialAMQP(cfg.RabbitMQURL)
		if err != nil {
			return err
		}
		defer pub.Close()
		notifiers = append(notifiers, pub)
		log.Info("publishing booking events", zap.String("exchange", notify.ExchangeBookingStatus))
	}
	deps.Notifier = notifiers

	go deps.Hub.Run(ctx)
	go deps.Limiter.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
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

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
