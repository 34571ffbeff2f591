package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream 503")

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New(Config{Name: "test_consec", MaxConsecFailures: 2, OpenFor: time.Hour}, nil)
	fail := func(context.Context) error { return errUpstream }

	require.ErrorIs(t, b.Do(context.Background(), fail), errUpstream)
	require.ErrorIs(t, b.Do(context.Background(), fail), errUpstream)
	assert.Equal(t, Open, b.State())

	called := false
	err := b.Do(context.Background(), func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	b := New(Config{Name: "test_probe", MaxConsecFailures: 1, OpenFor: time.Millisecond}, nil)
	_ = b.Do(context.Background(), func(context.Context) error { return errUpstream })
	require.Equal(t, Open, b.State())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, b.Do(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	notFound := errors.New("NOT_FOUND")
	b := New(Config{Name: "test_perm", MaxConsecFailures: 1, OpenFor: time.Hour}, nil).
		WithPermanent(func(err error) bool { return errors.Is(err, notFound) })

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(context.Background(), func(context.Context) error { return notFound }), notFound)
	}
	assert.Equal(t, Closed, b.State())
}

func TestCall_ReturnsValue(t *testing.T) {
	b := New(Config{Name: "test_call"}, nil)
	v, err := Call(context.Background(), b, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestBreaker_AppliesOperationTimeout(t *testing.T) {
	b := New(Config{Name: "test_timeout", OperationTimeout: 10 * time.Millisecond}, nil)
	err := b.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
