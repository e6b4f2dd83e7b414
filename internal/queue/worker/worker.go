package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/authservice/internal/notifications"
	"golang.org/x/sync/errgroup"
)

// Source is the outbox the worker drains.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (notifications.Message, error)
}

type Observer interface {
	ObserveNotification(kind, channel string, err error)
}

type Config struct {
	WorkerID     string
	Concurrency  int
	PopTimeout   time.Duration
	SendTimeout  time.Duration
	ReadyChecker func(ctx context.Context) error
}

// Worker pops rendered messages and hands them to a transport. Delivery is
// best-effort: a failed send is logged and dropped, a malformed payload is
// dropped, and only queue transport errors trigger a backoff.
type Worker struct {
	cfg  Config
	src  Source
	sink notifications.Notifier
	log  *slog.Logger
	obs  Observer

	backoff func(attempt int) time.Duration

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, src Source, sink notifications.Notifier, log *slog.Logger, obs Observer) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 2 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:     cfg,
		src:     src,
		sink:    sink,
		log:     log.With("worker_id", cfg.WorkerID),
		obs:     obs,
		backoff: ExponentialBackoff,
	}
}

// Run blocks until ctx is cancelled. Each of the Concurrency loops pops and
// delivers independently.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	w.log.InfoContext(ctx, "worker started", "concurrency", w.cfg.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			return w.loop(gctx)
		})
	}

	err := g.Wait()

	w.log.InfoContext(context.WithoutCancel(ctx), "worker stopped")
	return err
}

func (w *Worker) loop(ctx context.Context) error {
	attempt := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		_, err := w.ProcessOne(ctx)
		if err == nil {
			attempt = 0
			continue
		}

		if ctx.Err() != nil {
			return nil
		}

		delay := w.backoff(attempt)
		attempt++

		w.log.WarnContext(ctx, "queue unavailable, backing off", "err", err, "attempt", attempt, "delay_ms", delay.Milliseconds())

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// ProcessOne handles at most one message. It reports whether a message was
// taken off the queue; the error is non-nil only for queue transport
// failures.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	msg, err := w.src.Pop(ctx, w.cfg.PopTimeout)
	if err != nil {
		switch {
		case errors.Is(err, notifications.ErrQueueEmpty):
			return false, nil
		case errors.Is(err, notifications.ErrBadPayload):
			w.log.WarnContext(ctx, "dropping malformed notification", "err", err)
			return true, nil
		default:
			return false, err
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	err = w.sink.Send(sendCtx, msg)
	cancel()

	if w.obs != nil {
		w.obs.ObserveNotification(string(msg.Kind), string(msg.Channel), err)
	}

	if err != nil {
		w.log.WarnContext(ctx, "notification delivery failed",
			"kind", msg.Kind,
			"channel", msg.Channel,
			"err", err,
		)
	}

	return true, nil
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}
