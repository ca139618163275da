package expiring

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoadsOnceAndCaches(t *testing.T) {
	v := NewValue[int](time.Hour)
	var loads int32
	load := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&loads, 1)
		return 42, nil
	}

	for i := 0; i < 5; i++ {
		got, err := v.Get(context.Background(), load)
		require.NoError(t, err)
		assert.Equal(t, 42, got)
	}
	assert.Equal(t, int32(1), loads)
}

func TestInvalidateForcesReload(t *testing.T) {
	v := NewValue[int](time.Hour)
	var n int32
	load := func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&n, 1)), nil
	}

	got, err := v.Get(context.Background(), load)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	v.Invalidate()

	got, err = v.Get(context.Background(), load)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestExpiredValueReloads(t *testing.T) {
	v := NewValue[int](time.Millisecond)
	clock := time.Now()
	v.setClock(func() time.Time { return clock })

	var n int32
	load := func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&n, 1)), nil
	}

	got, err := v.Get(context.Background(), load)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	clock = clock.Add(time.Second)
	got, err = v.Get(context.Background(), load)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestLoadErrorIsNotCached(t *testing.T) {
	v := NewValue[int](time.Hour)
	boom := errors.New("boom")
	calls := 0
	load := func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, boom
		}
		return 99, nil
	}

	_, err := v.Get(context.Background(), load)
	require.ErrorIs(t, err, boom)

	got, err := v.Get(context.Background(), load)
	require.NoError(t, err)
	assert.Equal(t, 99, got)
}

func TestGetRespectsCancelledContext(t *testing.T) {
	v := NewValue[int](time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Get(ctx, func(ctx context.Context) (int, error) {
		t.Fatal("load should not run against a cancelled context")
		return 0, nil
	})
	require.Error(t, err)
}
