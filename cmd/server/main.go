package main

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

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/tictactoe/internal/config"
	"github.com/Skotchmaster/tictactoe/internal/hash"
	"github.com/Skotchmaster/tictactoe/internal/httpserver"
	"github.com/Skotchmaster/tictactoe/internal/limiter"
	"github.com/Skotchmaster/tictactoe/internal/metrics"
	"github.com/Skotchmaster/tictactoe/internal/mykafka"
	"github.com/Skotchmaster/tictactoe/internal/repo"
	"github.com/Skotchmaster/tictactoe/internal/service"
	"github.com/Skotchmaster/tictactoe/internal/tokens"
	"github.com/Skotchmaster/tictactoe/pkg/db"
	"github.com/Skotchmaster/tictactoe/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		return fmt.Errorf("db init: %w", err)
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logger.Warn("db_close_failed", "error", err)
		}
	}()

	gormRepo := repo.New(gdb)
	if err := gormRepo.Migrate(ctx); err != nil {
		return err
	}

	keys, err := tokens.NewStaticKeys(cfg.JWTKeyID, cfg.JWTSecret, nil)
	if err != nil {
		return fmt.Errorf("signing keys: %w", err)
	}
	codec, err := tokens.NewCodec(cfg.JWTAlgorithm, keys)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	registry := metrics.NewRegistry()

	authSvc := &service.AuthService{
		Users:           gormRepo,
		Tokens:          gormRepo,
		Codec:           codec,
		Verifier:        hash.BcryptVerifier{},
		Metrics:         metrics.New(registry),
		AccessTTL:       cfg.AccessTTL,
		RefreshTTL:      cfg.RefreshTTL,
		RevocationGrace: cfg.RevocationGrace,
		RotateRefresh:   cfg.RotateRefresh,
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		authSvc.Limiter = limiter.New(rdb, limiter.Config{
			MaxAttempts: cfg.LoginMaxAttempts,
			Cooldown:    cfg.LoginCooldown,
		})
		logger.Info("login_limiter_enabled", "redis", cfg.RedisAddr)
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := mykafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka_close_failed", "error", err)
			}
		}()
		authSvc.Events = producer
		logger.Info("user_events_enabled", "topic", cfg.KafkaTopic)
	} else {
		authSvc.Events = mykafka.Noop{}
	}

	if cfg.SweepInterval > 0 {
		go authSvc.RunSweeper(ctx, cfg.SweepInterval)
	}

	e := httpserver.New(logger, &httpserver.Deps{
		Auth:     authSvc,
		Games:    &service.GameService{Users: gormRepo, Store: gormRepo},
		Registry: registry,
		Ready:    func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	})
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		logger.Info("server_started", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("echo shutdown: %w", err)
	}
	logger.Info("server_shutdown")
	return nil
}
