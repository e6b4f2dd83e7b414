package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/authservice/internal/config"
	"github.com/geocoder89/authservice/internal/notifications"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/geocoder89/authservice/internal/queue/redisclient"
	"github.com/geocoder89/authservice/internal/queue/worker"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env).With("component", "notification-worker")
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	client := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	if err := client.WaitReady(ctx, 10, time.Second); err != nil {
		log.Error("redis unavailable", "addr", cfg.RedisAddr, "err", err)
		os.Exit(1)
	}

	queue := notifications.NewRedisQueue(client.Raw(), cfg.NotificationQueue)

	// stands in for a real email/SMS provider
	sink := notifications.NewProtectedNotifier(notifications.NewLogNotifier(log), notifications.ProtectedNotifierConfig{
		Timeout: cfg.NotifyTimeout,
	})

	prom := observability.NewProm(prometheus.NewRegistry())

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		WorkerID:     workerID,
		Concurrency:  4,
		PopTimeout:   2 * time.Second,
		SendTimeout:  cfg.NotifyTimeout,
		ReadyChecker: client.Ping,
	}, queue, sink, log, prom)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           w.HealthHandler(prom.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Run(gctx)
	})

	g.Go(func() error {
		log.Info("worker health server starting", "port", cfg.WorkerHealthPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("worker stopped with error", "err", err)
		os.Exit(1)
	}

	log.Info("worker shutdown complete", "queue", cfg.NotificationQueue)
}
