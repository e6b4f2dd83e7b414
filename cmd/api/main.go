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

	"github.com/geocoder89/authservice/internal/auth"
	"github.com/geocoder89/authservice/internal/config"
	"github.com/geocoder89/authservice/internal/credentials"
	"github.com/geocoder89/authservice/internal/db"
	httpx "github.com/geocoder89/authservice/internal/http"
	"github.com/geocoder89/authservice/internal/notifications"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/geocoder89/authservice/internal/queue/redisclient"
	"github.com/geocoder89/authservice/internal/repo/memory"
	"github.com/geocoder89/authservice/internal/repo/postgres"
	"github.com/geocoder89/authservice/internal/security"
	"github.com/geocoder89/authservice/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if cfg.UsesDefaultSecret() {
		log.Warn("JWT_SECRET not set, using the development default")
	}

	ctx := context.Background()

	shutdownTracer := observability.NoopShutdown
	if cfg.OTelEnabled {
		fn, err := observability.InitTracer(ctx, observability.ServiceName, cfg.OTelEndpoint)
		if err != nil {
			log.Error("tracer init failed, continuing without tracing", "err", err)
		} else {
			shutdownTracer = fn
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	repo, closeRepo, err := openRepository(ctx, cfg, log, prom)
	if err != nil {
		log.Error("store init failed", "mode", cfg.StoreMode, "err", err)
		os.Exit(1)
	}
	defer closeRepo()

	sink, closeSink, err := openNotifier(ctx, cfg, log)
	if err != nil {
		log.Error("notifier init failed", "mode", cfg.NotifierMode, "err", err)
		os.Exit(1)
	}
	defer closeSink()

	dispatcher := notifications.NewDispatcher(sink, log, cfg.NotifyTimeout, prom)

	store := credentials.NewStore(repo, security.BcryptHasher{Cost: 10}, dispatcher, credentials.Options{
		ReferralReward: cfg.ReferralReward,
		Logger:         log,
		Credits:        prom,
	})

	svc := service.NewAuthService(store, auth.NewManager(cfg.JWTSecret, cfg.TokenTTL), dispatcher, log)

	router := httpx.NewRouter(httpx.Deps{
		Cfg:     cfg,
		Log:     log,
		Prom:    prom,
		Service: svc,
		Ping:    store.Ping,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreMode, "notifier", cfg.NotifierMode)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	// let in-flight notifications finish before their transport closes
	dispatcher.Wait()

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}

func openRepository(ctx context.Context, cfg config.Config, log *slog.Logger, prom *observability.Prom) (credentials.Repository, func(), error) {
	if cfg.StoreMode == config.StoreMemory {
		log.Info("using in-memory user store")
		return memory.NewUsersRepo(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied")
	}

	return postgres.NewUsersRepo(pool, prom), pool.Close, nil
}

func openNotifier(ctx context.Context, cfg config.Config, log *slog.Logger) (notifications.Notifier, func(), error) {
	if cfg.NotifierMode == config.NotifierLog {
		return notifications.NewLogNotifier(log), func() {}, nil
	}

	client := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.WaitReady(ctx, 5, time.Second); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	queue := notifications.NewRedisQueue(client.Raw(), cfg.NotificationQueue)

	protected := notifications.NewProtectedNotifier(queue, notifications.ProtectedNotifierConfig{
		Timeout:          cfg.NotifyTimeout,
		FailureThreshold: 5,
		Cooldown:         15 * time.Second,
	})

	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn("redis close failed", "err", err)
		}
	}

	return protected, closeFn, nil
}
