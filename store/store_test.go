package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/freshcache/clock"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type evictionRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *evictionRecorder) record(_ context.Context, key string, value int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("%s=%d", key, value))
	return nil
}

func (r *evictionRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestStore(t *testing.T, cfg Config[string, int]) (*Store[string, int], *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(epoch)
	cfg.Clock = fake
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Hour
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, fake
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, Config[string, int]{})

	require.NoError(t, s.Set(ctx, "a", 1, time.Minute))

	v, ok := s.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = s.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", 2, time.Minute))
	v, _ = s.Get(ctx, "a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, s.Len())

	st := s.Stats()
	assert.Equal(t, uint64(2), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
}

func TestSet_RejectsNonPositiveTTL(t *testing.T) {
	s, _ := newTestStore(t, Config[string, int]{})

	for _, ttl := range []time.Duration{0, -time.Second} {
		err := s.Set(context.Background(), "a", 1, ttl)
		assert.ErrorIs(t, err, ErrInvalidTTL)
	}
	assert.Equal(t, 0, s.Len())
}

func TestGet_LazyExpiryNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	rec := &evictionRecorder{}
	s, fake := newTestStore(t, Config[string, int]{OnEviction: rec.record})

	require.NoError(t, s.Set(ctx, "a", 7, 10*time.Second))
	fake.Advance(9 * time.Second)
	_, ok := s.Get(ctx, "a")
	require.True(t, ok)

	fake.Advance(time.Second) // now == expiresAt
	for range 5 {
		_, ok = s.Get(ctx, "a")
		assert.False(t, ok)
	}
	s.Wait()

	assert.Equal(t, []string{"a=7"}, rec.snapshot())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, uint64(1), s.Stats().Expired)
}

func TestGet_ConcurrentExpiryNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	rec := &evictionRecorder{}
	s, fake := newTestStore(t, Config[string, int]{OnEviction: rec.record})

	require.NoError(t, s.Set(ctx, "a", 1, time.Second))
	fake.Advance(2 * time.Second)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Get(ctx, "a")
		}()
	}
	wg.Wait()
	s.Wait()

	assert.Len(t, rec.snapshot(), 1)
}

func TestCapacity_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	rec := &evictionRecorder{}
	s, _ := newTestStore(t, Config[string, int]{NumItemsLimit: 2, OnEviction: rec.record})

	require.NoError(t, s.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, s.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, s.Set(ctx, "c", 3, time.Minute))
	s.Wait()

	assert.Equal(t, []string{"a=1"}, rec.snapshot())
	assert.False(t, s.Has("a"))
	assert.True(t, s.Has("b"))
	assert.True(t, s.Has("c"))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, uint64(1), s.Stats().Capacity)
}

func TestCapacity_GetPromotes(t *testing.T) {
	ctx := context.Background()
	rec := &evictionRecorder{}
	s, _ := newTestStore(t, Config[string, int]{NumItemsLimit: 2, OnEviction: rec.record})

	require.NoError(t, s.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, s.Set(ctx, "b", 2, time.Minute))
	_, ok := s.Get(ctx, "a")
	require.True(t, ok)
	require.NoError(t, s.Set(ctx, "c", 3, time.Minute))
	s.Wait()

	assert.Equal(t, []string{"b=2"}, rec.snapshot())
	assert.True(t, s.Has("a"))
}

func TestCapacity_HasDoesNotPromote(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, Config[string, int]{NumItemsLimit: 2})

	require.NoError(t, s.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, s.Set(ctx, "b", 2, time.Minute))
	require.True(t, s.Has("a"))
	require.NoError(t, s.Set(ctx, "c", 3, time.Minute))

	assert.False(t, s.Has("a"))
}

func TestCapacity_UpdateExistingKeyDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	rec := &evictionRecorder{}
	s, _ := newTestStore(t, Config[string, int]{NumItemsLimit: 2, OnEviction: rec.record})

	require.NoError(t, s.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, s.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, s.Set(ctx, "a", 10, time.Minute))
	s.Wait()

	assert.Empty(t, rec.snapshot())
	assert.Equal(t, 2, s.Len())
}

func TestHas_DoesNotRemoveExpired(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t, Config[string, int]{})

	require.NoError(t, s.Set(ctx, "a", 1, time.Second))
	fake.Advance(time.Second)

	assert.False(t, s.Has("a"))
	assert.Equal(t, 1, s.Len())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("with callback", func(t *testing.T) {
		rec := &evictionRecorder{}
		s, _ := newTestStore(t, Config[string, int]{OnEviction: rec.record})
		require.NoError(t, s.Set(ctx, "a", 1, time.Minute))

		assert.True(t, s.Delete(ctx, "a"))
		assert.False(t, s.Delete(ctx, "a"))
		s.Wait()
		assert.Equal(t, []string{"a=1"}, rec.snapshot())
	})

	t.Run("without callback", func(t *testing.T) {
		s, _ := newTestStore(t, Config[string, int]{})
		require.NoError(t, s.Set(ctx, "a", 1, time.Minute))

		assert.True(t, s.Delete(ctx, "a"))
		assert.False(t, s.Delete(ctx, "a"))
		assert.Equal(t, uint64(1), s.Stats().Deleted)
	})

	t.Run("bounded backend", func(t *testing.T) {
		rec := &evictionRecorder{}
		s, _ := newTestStore(t, Config[string, int]{NumItemsLimit: 3, OnEviction: rec.record})
		require.NoError(t, s.Set(ctx, "a", 1, time.Minute))

		assert.True(t, s.Delete(ctx, "a"))
		assert.False(t, s.Delete(ctx, "missing"))
		s.Wait()
		assert.Equal(t, []string{"a=1"}, rec.snapshot())
	})
}

func TestCallbackFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	calls := make(chan string, 2)
	s, _ := newTestStore(t, Config[string, int]{
		OnEviction: func(_ context.Context, key string, _ int) error {
			calls <- key
			if key == "panic" {
				panic("callback exploded")
			}
			return errors.New("downstream unavailable")
		},
	})

	require.NoError(t, s.Set(ctx, "err", 1, time.Minute))
	require.NoError(t, s.Set(ctx, "panic", 2, time.Minute))
	assert.True(t, s.Delete(ctx, "err"))
	assert.True(t, s.Delete(ctx, "panic"))
	s.Wait()

	assert.Len(t, calls, 2)
	assert.Equal(t, uint64(2), s.Stats().CallbackFailures)

	// The store keeps working after failures.
	require.NoError(t, s.Set(ctx, "ok", 3, time.Minute))
	v, ok := s.Get(ctx, "ok")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestCallbackMayReenterStore(t *testing.T) {
	ctx := context.Background()
	var s *Store[string, int]
	done := make(chan struct{})
	s, _ = newTestStore(t, Config[string, int]{
		OnEviction: func(ctx context.Context, key string, value int) error {
			defer close(done)
			return s.Set(ctx, key+"-tombstone", value, time.Minute)
		},
	})

	require.NoError(t, s.Set(ctx, "a", 1, time.Minute))
	s.Delete(ctx, "a")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not run")
	}
	assert.True(t, s.Has("a-tombstone"))
}

func TestCallbackContextIsNotCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	s, _ := newTestStore(t, Config[string, int]{
		OnEviction: func(ctx context.Context, _ string, _ int) error {
			errs <- ctx.Err()
			return nil
		},
	})

	require.NoError(t, s.Set(ctx, "a", 1, time.Minute))
	cancel()
	s.Delete(ctx, "a")
	s.Wait()

	assert.NoError(t, <-errs)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	rec := &evictionRecorder{}
	s, fake := newTestStore(t, Config[string, int]{
		OnEviction:    rec.record,
		SweepInterval: time.Second,
	})

	require.NoError(t, s.Set(ctx, "a", 1, time.Second))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 0, fake.Tickers())

	fake.Advance(10 * time.Second)
	_, ok := s.Get(ctx, "a")
	assert.False(t, ok)
	assert.ErrorIs(t, s.Set(ctx, "b", 2, time.Minute), ErrClosed)
	assert.False(t, s.Delete(ctx, "a"))
	assert.False(t, s.Has("a"))

	s.Wait()
	assert.Empty(t, rec.snapshot())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config[string, int]
		wantErr error
	}{
		{name: "zero value", cfg: Config[string, int]{}},
		{name: "bounded", cfg: Config[string, int]{NumItemsLimit: 10}},
		{name: "negative limit", cfg: Config[string, int]{NumItemsLimit: -1}, wantErr: ErrInvalidLimit},
		{name: "negative interval", cfg: Config[string, int]{SweepInterval: -time.Second}, wantErr: ErrInvalidSweepInterval},
		{name: "negative batch", cfg: Config[string, int]{SweepBatchSize: -1}, wantErr: ErrInvalidBatchSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = New(tt.cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(Config[string, int]{})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.Equal(t, DefaultName, s.Name())
	assert.Equal(t, DefaultSweepBatchSize, s.batch)
}

func TestEvictionReason_String(t *testing.T) {
	assert.Equal(t, "deleted", ReasonDeleted.String())
	assert.Equal(t, "expired", ReasonExpired.String())
	assert.Equal(t, "capacity", ReasonCapacity.String())
	assert.Equal(t, "swept", ReasonSwept.String())
	assert.Equal(t, "unknown", EvictionReason(42).String())
}
