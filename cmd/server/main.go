// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"crm-agent/internal/agent"
	"crm-agent/internal/agent/classifier"
	"crm-agent/internal/agent/responder"
	"crm-agent/internal/common/config"
	"crm-agent/internal/common/database"
	"crm-agent/internal/common/logger"
	"crm-agent/internal/common/observability"
	"crm-agent/internal/gateway"
	"crm-agent/internal/notify"
	"crm-agent/internal/server"
	"crm-agent/internal/session"
	"crm-agent/internal/storage"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting crm-agent server...",
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Wire the dialog engine ---
	store := storage.New(pg.GetDB(), log)
	sessions := session.NewStore(rdb.GetClient(),
		time.Duration(cfg.Agent.SessionTTL)*time.Second, log)

	llmClient := classifier.NewClient(classifier.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.Timeout) * time.Millisecond,
		MaxRetries:  cfg.LLM.MaxRetries,
	}, log)

	talk := responder.New(llmClient, log)

	notifier, err := notify.NewEmailNotifier(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Fatal("email notifier init failed", zap.Error(err))
	}

	dispatcher := agent.NewDispatcher(store, log).WithNotifier(notifier)
	engine := agent.NewEngine(llmClient, talk, dispatcher, sessions, cfg.Agent.ConfirmPolicy, log)

	sender, err := gateway.New(ctx, cfg.Gateway, log)
	if err != nil {
		zapLog.Fatal("gateway init failed", zap.Error(err))
	}

	checks := map[string]server.HealthChecker{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}
	srv := server.New(cfg.Server, engine, sender, checks, log)

	// --- Serve until a shutdown signal arrives ---
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		zapLog.Fatal("http server failed", zap.Error(err))
	case sig := <-stop:
		zapLog.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLog.Info("Server stopped")
}
