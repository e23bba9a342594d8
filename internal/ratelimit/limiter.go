package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Limiter is a fixed-window counter per key.
type Limiter struct {
	inner *limiter.Limiter
	max   int
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// New builds a limiter admitting max events per window. Counters live in
// Redis when rdb is set and in process memory otherwise.
func New(rdb *redis.Client, prefix string, window time.Duration, max int) (*Limiter, error) {
	var (
		store limiter.Store
		err   error
	)
	opts := limiter.StoreOptions{Prefix: prefix, CleanUpInterval: limiter.DefaultCleanUpInterval}
	if rdb != nil {
		store, err = limiterredis.NewStoreWithOptions(rdb, opts)
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStoreWithOptions(opts)
	}
	return &Limiter{inner: limiter.New(store, limiter.Rate{Period: window, Limit: int64(max)}), max: max}, nil
}

// Allow counts one event for key.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l == nil || l.inner == nil || l.max <= 0 {
		return Decision{Allowed: true, Limit: l.limit(), Remaining: l.limit()}, nil
	}
	res, err := l.inner.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     int(res.Limit),
		Remaining: int(res.Remaining),
		ResetAt:   time.Unix(res.Reset, 0),
	}, nil
}

func (l *Limiter) limit() int {
	if l == nil {
		return 0
	}
	return l.max
}
