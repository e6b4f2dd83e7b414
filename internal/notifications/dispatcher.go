package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Observer receives one outcome per dispatched message.
type Observer interface {
	ObserveNotification(kind, channel string, err error)
}

// Dispatcher runs every send in its own goroutine with its own timeout and
// swallows the result: errors and panics are logged, never returned. Wait
// blocks until in-flight sends finish (shutdown, tests).
type Dispatcher struct {
	inner   Notifier
	log     *slog.Logger
	timeout time.Duration
	obs     Observer

	wg sync.WaitGroup
}

func NewDispatcher(inner Notifier, log *slog.Logger, timeout time.Duration, obs Observer) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Dispatcher{
		inner:   inner,
		log:     log,
		timeout: timeout,
		obs:     obs,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	// detach from the request: the response may be written before the send ends
	base := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()

		err := d.send(sendCtx, msg)

		if d.obs != nil {
			d.obs.ObserveNotification(string(msg.Kind), string(msg.Channel), err)
		}

		if err != nil {
			d.log.WarnContext(sendCtx, "notification dropped",
				"kind", msg.Kind,
				"channel", msg.Channel,
				"err", err,
			)
		}
	}()
}

func (d *Dispatcher) send(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()

	return d.inner.Send(ctx, msg)
}

func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
