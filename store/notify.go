package store

import (
	"context"
	"fmt"

	"github.com/jonwraymond/freshcache/observe"
)

// notify records a removal and dispatches the eviction callback on its own
// goroutine. It must be called without holding s.mu.
func (s *Store[K, V]) notify(ctx context.Context, r removal[K, V]) {
	s.stats.byReason[r.reason].Add(1)
	s.metrics.RecordEviction(ctx, s.meta, r.reason.String())
	s.logger.Debug(ctx, "entry removed",
		observe.F("key", fmt.Sprint(r.key)),
		observe.F("reason", r.reason.String()),
	)

	if s.onEviction == nil {
		return
	}

	cbCtx := context.WithoutCancel(ctx)
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		defer func() {
			if p := recover(); p != nil {
				s.callbackFailed(cbCtx, r, fmt.Errorf("panic: %v", p))
			}
		}()

		if err := s.onEviction(cbCtx, r.key, r.value); err != nil {
			s.callbackFailed(cbCtx, r, err)
		}
	}()
}

func (s *Store[K, V]) callbackFailed(ctx context.Context, r removal[K, V], err error) {
	s.stats.callbackFailures.Add(1)
	s.metrics.RecordCallbackFailure(ctx, s.meta)
	s.logger.Warn(ctx, "eviction callback failed",
		observe.F("key", fmt.Sprint(r.key)),
		observe.F("reason", r.reason.String()),
		observe.F("error", err),
	)
}
