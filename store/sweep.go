package store

import "context"

func (s *Store[K, V]) sweepLoop() {
	defer close(s.loopDone)

	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C():
			s.sweep(context.Background())
		}
	}
}

// sweep inspects at most s.batch entries starting at the persistent cursor
// and removes the expired ones. The cursor restarts at zero once it passes
// the end of the key index.
func (s *Store[K, V]) sweep(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	var removed []removal[K, V]
	inspected := 0
	i := s.cursor
	for inspected < s.batch {
		key, ok := s.backend.keyAt(i)
		if !ok {
			i = 0
			break
		}
		inspected++

		e, _ := s.backend.peek(key)
		if !e.expired(now) {
			i++
			continue
		}
		// The last key is swapped into slot i, so i is inspected again.
		s.backend.remove(key)
		removed = append(removed, removal[K, V]{key: key, value: e.value, reason: ReasonSwept})
	}
	s.cursor = i
	s.mu.Unlock()

	s.stats.sweeps.Add(1)
	s.metrics.RecordSweep(ctx, s.meta, inspected)
	for _, r := range removed {
		s.notify(ctx, r)
	}
}
