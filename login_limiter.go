package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// loginIPLimiter throttles login attempts per client IP over a fixed window.
// Every attempt counts, successful or not, so a source address that hammers
// the endpoint is cut off regardless of which accounts it aims at. Attempts
// arriving without a client IP on the context bypass the throttle; callers
// that want it must attach one via [WithClientIP].
type loginIPLimiter struct {
	redis  redis.UniversalClient
	prefix string
	cfg    LoginThrottleConfig
}

func newLoginIPLimiter(redisClient redis.UniversalClient, prefix string, cfg LoginThrottleConfig) *loginIPLimiter {
	return &loginIPLimiter{redis: redisClient, prefix: prefix, cfg: cfg}
}

func (l *loginIPLimiter) key(ip string) string {
	return l.prefix + ":lip:" + ip
}

// Check returns a *LoginThrottledError when the IP's attempt budget for the
// current window is spent.
func (l *loginIPLimiter) Check(ctx context.Context, ip string) error {
	count, err := l.redis.Get(ctx, l.key(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}

	if count < int64(l.cfg.MaxAttempts) {
		return nil
	}

	retryAfter, err := l.redis.PTTL(ctx, l.key(ip)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	if retryAfter < 0 {
		return nil
	}

	return &LoginThrottledError{RetryAfter: retryAfter}
}

// Increment counts one login attempt against the IP.
func (l *loginIPLimiter) Increment(ctx context.Context, ip string) error {
	return incrementWindow(ctx, l.redis, l.key(ip), l.cfg.Window)
}
