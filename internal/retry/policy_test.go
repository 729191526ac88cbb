package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestBackoff(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, 60 * time.Second},
		{10, 60 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	var waits []time.Duration
	p := DefaultPolicy()
	p.Sleep = recordingSleep(&waits)

	calls := 0
	err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt == 1 {
			return errors.New("store unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{5 * time.Second}, waits)
}

func TestDo_GivesUp(t *testing.T) {
	var waits []time.Duration
	p := DefaultPolicy()
	p.Sleep = recordingSleep(&waits)
	boom := errors.New("boom")

	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "gave up after 2 attempts")
	assert.Equal(t, 2, calls)
	assert.Len(t, waits, 1)
}

func TestDo_PermanentNotRetried(t *testing.T) {
	p := DefaultPolicy()
	p.Sleep = func(context.Context, time.Duration) error {
		t.Fatal("no sleep expected")
		return nil
	}
	invalid := errors.New("invalid team id")

	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return Permanent(invalid)
	})

	assert.Equal(t, 1, calls)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, invalid)
	assert.Nil(t, Permanent(nil))
}

func TestDo_AttemptDeadline(t *testing.T) {
	p := Policy{MaxAttempts: 1, MaxDuration: 20 * time.Millisecond}

	err := p.Do(context.Background(), func(ctx context.Context, _ int) error {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), deadline, time.Second)
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_ParentCanceledStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultPolicy()
	p.MaxAttempts = 5

	calls := 0
	err := p.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("failed")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RealSleepInterruptedByContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	p := Policy{MaxAttempts: 3, MinBackoff: time.Hour, MaxBackoff: time.Hour}
	start := time.Now()
	err := p.Do(ctx, func(context.Context, int) error { return errors.New("nope") })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry interrupted")
	assert.Less(t, time.Since(start), 10*time.Second)
}
