package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jonwraymond/freshcache/freshness"
	"github.com/jonwraymond/freshcache/observe"
)

// fetch runs one deduplicated producer fetch for key and vary values and
// stores the result. Concurrent callers for the same request share a flight.
// The flight runs detached from ctx so one caller giving up does not fail the
// others; the fetch policy's timeout bounds it.
func (c *Cache[V]) fetch(ctx context.Context, key string, req Request, prev *freshness.Resource[V], fetcher Fetcher[V]) (*freshness.Resource[V], error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key+"|"+varyKey(req.Vary), func() (any, error) {
		return c.doFetch(flightCtx, key, req, prev, fetcher)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*freshness.Resource[V]), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache[V]) doFetch(ctx context.Context, key string, req Request, prev *freshness.Resource[V], fetcher Fetcher[V]) (*freshness.Resource[V], error) {
	rv := Revalidation[V]{Request: req, Previous: prev}

	var res *freshness.Resource[V]
	err := c.middleware.Fetch(ctx, c.meta(req), key, func(ctx context.Context) (string, error) {
		// A timed out attempt may still finish after a later one.
		var answer atomic.Pointer[Fetched[V]]
		err := c.exec.Execute(ctx, func(ctx context.Context) error {
			f, err := fetcher.Fetch(ctx, rv)
			if err != nil {
				return err
			}
			answer.Store(&f)
			return nil
		})
		if err != nil {
			return "", err
		}

		f := answer.Load()
		r, err := c.resourceFrom(*f, prev)
		if err != nil {
			return "", err
		}
		res = r

		if f.NotModified {
			return observe.OutcomeNotModified, nil
		}
		return observe.OutcomeFetched, nil
	})
	if err != nil {
		return nil, err
	}

	c.write(ctx, key, req, res)
	return res, nil
}

// resourceFrom turns a producer answer into a resource. NotModified keeps
// prev's value and, unless overridden, its directives and validators.
func (c *Cache[V]) resourceFrom(f Fetched[V], prev *freshness.Resource[V]) (*freshness.Resource[V], error) {
	date := f.Date
	if date.IsZero() {
		date = c.clock.Now()
	}

	value := f.Value
	directives := c.policy.DefaultDirectives
	validators := f.Validators

	if f.NotModified {
		if prev == nil {
			return nil, ErrUnexpectedNotModified
		}
		if f.Directives == nil && len(validators) == 0 && f.InitialAge == 0 {
			return prev.Refreshed(date), nil
		}
		value = prev.Value()
		directives = prev.Directives()
		if len(validators) == 0 {
			validators = prev.Validators()
		}
	}
	if f.Directives != nil {
		directives = *f.Directives
	}

	res, err := freshness.NewResource(value, date, directives,
		freshness.WithInitialAge(f.InitialAge),
		freshness.WithValidators(validators),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFetch, err)
	}
	return res, nil
}

// revalidate starts a background refresh of prev unless one is already
// running for the same request or the revalidation bulkhead is full. It
// reports whether a refresh is in progress.
func (c *Cache[V]) revalidate(ctx context.Context, key string, req Request, prev *freshness.Resource[V], fetcher Fetcher[V]) bool {
	flight := key + "|" + varyKey(req.Vary)
	if _, running := c.pending.LoadOrStore(flight, struct{}{}); running {
		return true
	}

	c.bgMu.RLock()
	if c.closed {
		c.bgMu.RUnlock()
		c.pending.Delete(flight)
		return false
	}
	c.bg.Add(1)
	c.bgMu.RUnlock()

	bgCtx := context.WithoutCancel(ctx)
	logger := c.logger.WithCache(c.meta(req))

	err := c.revalidations.Go(bgCtx, func(ctx context.Context) error {
		_, err := c.fetch(ctx, key, req, prev, fetcher)
		return err
	}, func(err error) {
		if err != nil {
			logger.Warn(bgCtx, "background revalidation failed",
				observe.F("key", key),
				observe.F("error", err),
			)
		}
		c.pending.Delete(flight)
		c.bg.Done()
	})
	if err != nil {
		logger.Debug(bgCtx, "background revalidation dropped",
			observe.F("key", key),
			observe.F("error", err),
		)
		c.pending.Delete(flight)
		c.bg.Done()
		return false
	}
	return true
}
