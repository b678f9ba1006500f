package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// otpRequestLimiter throttles passcode issuance per email over a fixed
// window. The window opens on the first issued request and resets when its
// Redis TTL lapses, so "minutes remaining" falls straight out of the key TTL.
//
// Check and Increment are split deliberately: only requests that actually
// issue a passcode are counted, so a request rejected at account lookup does
// not consume budget.
type otpRequestLimiter struct {
	redis  redis.UniversalClient
	prefix string
	cfg    OTPConfig
}

func newOTPRequestLimiter(redisClient redis.UniversalClient, prefix string, cfg OTPConfig) *otpRequestLimiter {
	return &otpRequestLimiter{redis: redisClient, prefix: prefix, cfg: cfg}
}

func (l *otpRequestLimiter) key(email string) string {
	return l.prefix + ":otpw:" + email
}

// Check returns a *ThrottledError when the email's issuance budget for the
// current window is spent.
func (l *otpRequestLimiter) Check(ctx context.Context, email string) error {
	count, err := l.redis.Get(ctx, l.key(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}

	if count < int64(l.cfg.MaxRequests) {
		return nil
	}

	retryAfter, err := l.redis.PTTL(ctx, l.key(email)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	if retryAfter < 0 {
		// Key expired between the reads; the window has reset.
		return nil
	}

	return &ThrottledError{RetryAfter: retryAfter}
}

// Increment counts one issued passcode. SETNX arms the window's expiry
// before INCR counts, in one transaction, so no counter can ever exist
// without a TTL; an orphaned counter would otherwise read as a permanently
// open window.
func (l *otpRequestLimiter) Increment(ctx context.Context, email string) error {
	return incrementWindow(ctx, l.redis, l.key(email), l.cfg.RequestWindow)
}

func incrementWindow(ctx context.Context, client redis.UniversalClient, key string, window time.Duration) error {
	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, window)
		pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return nil
}
