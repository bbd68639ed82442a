package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jonwraymond/freshcache/observe"
)

func fill(t *testing.T, s *Store[string, int], n int, ttl time.Duration) {
	t.Helper()
	for i := range n {
		require.NoError(t, s.Set(context.Background(), fmt.Sprintf("k%03d", i), i, ttl))
	}
}

func TestSweep_RemovesExpiredInBatches(t *testing.T) {
	for _, tc := range []struct{ n, batch, limit int }{
		{n: 50, batch: 20},
		{n: 40, batch: 20},
		{n: 7, batch: 3},
		{n: 50, batch: 20, limit: 100},
	} {
		t.Run(fmt.Sprintf("n=%d/batch=%d/limit=%d", tc.n, tc.batch, tc.limit), func(t *testing.T) {
			rec := &evictionRecorder{}
			s, fake := newTestStore(t, Config[string, int]{
				NumItemsLimit:  tc.limit,
				SweepBatchSize: tc.batch,
				OnEviction:     rec.record,
			})
			fill(t, s, tc.n, time.Second)
			fake.Advance(time.Second)

			ticks := (tc.n + tc.batch - 1) / tc.batch
			for range ticks {
				s.sweep(context.Background())
			}
			s.Wait()

			assert.Equal(t, 0, s.Len())
			events := rec.snapshot()
			assert.Len(t, events, tc.n)
			seen := make(map[string]bool)
			for _, e := range events {
				assert.False(t, seen[e], "duplicate callback %s", e)
				seen[e] = true
			}
			assert.Equal(t, uint64(tc.n), s.Stats().Swept)
		})
	}
}

func TestSweep_InspectsAtMostBatch(t *testing.T) {
	s, fake := newTestStore(t, Config[string, int]{SweepBatchSize: 5})
	fill(t, s, 12, time.Second)
	fake.Advance(time.Second)

	s.sweep(context.Background())
	assert.Equal(t, 7, s.Len())
}

func TestSweep_CursorAdvancesPastLiveEntries(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t, Config[string, int]{SweepBatchSize: 4})

	// Eight long-lived entries followed by two short-lived ones.
	fill(t, s, 8, time.Hour)
	require.NoError(t, s.Set(ctx, "short1", 1, time.Second))
	require.NoError(t, s.Set(ctx, "short2", 2, time.Second))
	fake.Advance(time.Second)

	s.sweep(ctx)
	assert.Equal(t, 4, s.cursor)
	assert.Equal(t, 10, s.Len())

	s.sweep(ctx)
	assert.Equal(t, 8, s.cursor)

	s.sweep(ctx) // removes both short entries, then wraps
	assert.Equal(t, 8, s.Len())
	assert.Equal(t, 0, s.cursor)
}

func TestSweep_EveryLiveKeyInspectedOncePerCycle(t *testing.T) {
	s, _ := newTestStore(t, Config[string, int]{SweepBatchSize: 3})
	fill(t, s, 10, time.Hour)

	// ceil(10/3) ticks cover the index, the next restarts at zero.
	for range 4 {
		s.sweep(context.Background())
	}
	assert.Equal(t, 0, s.cursor)
	s.sweep(context.Background())
	assert.Equal(t, 3, s.cursor)
}

func TestSweep_DrivenByTicker(t *testing.T) {
	rec := &evictionRecorder{}
	s, fake := newTestStore(t, Config[string, int]{
		SweepInterval:  time.Second,
		SweepBatchSize: 10,
		OnEviction:     rec.record,
	})
	fill(t, s, 25, 500*time.Millisecond)

	require.Eventually(t, func() bool {
		fake.Advance(time.Second)
		return s.Len() == 0
	}, 2*time.Second, 5*time.Millisecond)

	s.Wait()
	assert.Len(t, rec.snapshot(), 25)
}

func TestSweep_StopsAfterClose(t *testing.T) {
	rec := &evictionRecorder{}
	s, fake := newTestStore(t, Config[string, int]{
		SweepInterval: time.Second,
		OnEviction:    rec.record,
	})
	fill(t, s, 5, time.Second)
	require.NoError(t, s.Close())

	fake.Advance(5 * time.Second)
	s.sweep(context.Background())
	s.Wait()

	assert.Empty(t, rec.snapshot())
}

func TestStoreMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observe.NewStoreMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	s, fake := newTestStore(t, Config[string, int]{Name: "scores", Metrics: metrics})
	fill(t, s, 3, time.Second)
	_, _ = s.Get(ctx, "k000")
	fake.Advance(time.Second)
	_, _ = s.Get(ctx, "k001")
	s.sweep(ctx)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}

	evictions, ok := byName["freshcache.store.evictions"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range evictions.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)

	inspected, ok := byName["freshcache.store.sweep.inspected"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, inspected.DataPoints, 1)
	assert.Equal(t, int64(2), inspected.DataPoints[0].Value)
}

func TestKeyIndex_SwapRemove(t *testing.T) {
	x := newKeyIndex[string]()
	for _, k := range []string{"a", "b", "c", "d"} {
		x.add(k)
	}
	x.add("a")

	x.drop("b")
	x.drop("missing")

	var got []string
	for i := 0; ; i++ {
		k, ok := x.keyAt(i)
		if !ok {
			break
		}
		got = append(got, k)
	}
	assert.Equal(t, []string{"a", "d", "c"}, got)
	assert.Equal(t, 1, x.pos["d"])
}
