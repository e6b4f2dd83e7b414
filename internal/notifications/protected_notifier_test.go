package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectedNotifier_OpensAfterThreshold(t *testing.T) {
	fail := true
	inner := &fakeNotifier{sendFn: func(ctx context.Context, msg Message) error {
		if fail {
			return errors.New("down")
		}
		return nil
	}}

	now := time.Now()
	p := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 2, Cooldown: time.Minute})
	p.now = func() time.Time { return now }

	msg := Registration(Recipient{Email: "a@example.com"})

	require.Error(t, p.Send(context.Background(), msg))
	assert.Equal(t, "closed", p.State())
	require.Error(t, p.Send(context.Background(), msg))
	assert.Equal(t, "open", p.State())

	// open: inner is not called
	err := p.Send(context.Background(), msg)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Len(t, inner.Sent(), 2)

	// after the cooldown one trial call goes through and closes the circuit
	fail = false
	now = now.Add(time.Minute)

	require.NoError(t, p.Send(context.Background(), msg))
	assert.Equal(t, "closed", p.State())
	assert.Len(t, inner.Sent(), 3)
}

func TestProtectedNotifier_HalfOpenFailureReopens(t *testing.T) {
	inner := &fakeNotifier{sendFn: func(ctx context.Context, msg Message) error {
		return errors.New("still down")
	}}

	now := time.Now()
	p := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 1, Cooldown: time.Second})
	p.now = func() time.Time { return now }

	msg := Registration(Recipient{Email: "a@example.com"})

	require.Error(t, p.Send(context.Background(), msg))
	assert.Equal(t, "open", p.State())

	now = now.Add(2 * time.Second)

	err := p.Send(context.Background(), msg)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, "open", p.State())
}

func TestProtectedNotifier_EnforcesTimeout(t *testing.T) {
	inner := &fakeNotifier{sendFn: func(ctx context.Context, msg Message) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	p := NewProtectedNotifier(inner, ProtectedNotifierConfig{Timeout: 10 * time.Millisecond})

	err := p.Send(context.Background(), Registration(Recipient{Email: "a@example.com"}))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
