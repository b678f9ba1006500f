package authcore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const otpRecordVersionV1 = 1

var (
	errOTPNotFound         = errors.New("otp record not found")
	errOTPMismatch         = errors.New("otp mismatch")
	errOTPAttemptsExceeded = errors.New("otp attempts exceeded")
	errRedisUnavailable = errors.New("redis unavailable")
)

// otpStore keeps the live passcode record and the failed-attempt counter for
// each email, both in Redis so every read-check-write section runs as a WATCH
// transaction on the record's keys. At most one live record exists per email;
// Save overwrites the prior record and clears its attempt counter in the same
// transaction.
type otpStore struct {
	redis  redis.UniversalClient
	prefix string
}

type otpRecord struct {
	Digest    [32]byte
	ExpiresAt int64
}

func newOTPStore(redisClient redis.UniversalClient, prefix string) *otpStore {
	return &otpStore{redis: redisClient, prefix: prefix}
}

func (s *otpStore) recordKey(email string) string {
	return s.prefix + ":otp:" + email
}

func (s *otpStore) attemptsKey(email string) string {
	return s.prefix + ":otpa:" + email
}

// hashOTP is the stored form of a passcode. Plaintext passcodes never reach
// Redis.
func hashOTP(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// Save stores a fresh record for email, replacing any prior one and clearing
// the attempt counter that belonged to it.
func (s *otpStore) Save(ctx context.Context, email string, digest [32]byte, expiresAt time.Time, ttl time.Duration) error {
	encoded, err := encodeOTPRecord(&otpRecord{Digest: digest, ExpiresAt: expiresAt.Unix()})
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(email), encoded, ttl)
		pipe.Del(ctx, s.attemptsKey(email))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}

	return nil
}

// Check verifies providedDigest against the live record for email at instant
// now. The attempt cap is enforced first: at the cap, record and counter are
// destroyed and errOTPAttemptsExceeded returned. A missing, expired, or
// mismatched record increments the counter and returns errOTPMismatch with
// the remaining budget. A match leaves the record in place; the caller
// completes its own side effects and then calls Clear.
func (s *otpStore) Check(ctx context.Context, email string, providedDigest [32]byte, maxAttempts int, now time.Time) (remaining int, err error) {
	const maxRetries = 4

	recordKey := s.recordKey(email)
	attemptsKey := s.attemptsKey(email)

	for i := 0; i < maxRetries; i++ {
		var remainingOut int

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			attempts, err := tx.Get(ctx, attemptsKey).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			if attempts >= int64(maxAttempts) {
				_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, recordKey)
					pipe.Del(ctx, attemptsKey)
					return nil
				})
				if err != nil {
					return err
				}
				return errOTPAttemptsExceeded
			}

			matched := false
			data, err := tx.Get(ctx, recordKey).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
				// No live record: still counts as an attempt.
			case err != nil:
				return err
			default:
				record, err := decodeOTPRecord(data)
				if err != nil {
					return err
				}
				if now.Unix() <= record.ExpiresAt &&
					subtle.ConstantTimeCompare(record.Digest[:], providedDigest[:]) == 1 {
					matched = true
				}
			}

			if matched {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Incr(ctx, attemptsKey)
				if attempts == 0 {
					// Housekeeping TTL so counters for abandoned resets
					// don't accumulate. Far longer than any record lives.
					pipe.Expire(ctx, attemptsKey, time.Hour)
				}
				return nil
			})
			if err != nil {
				return err
			}
			remainingOut = maxAttempts - int(attempts) - 1
			return errOTPMismatch
		}, recordKey, attemptsKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, errOTPAttemptsExceeded), errors.Is(err, errOTPMismatch):
				return remainingOut, err
			default:
				return 0, fmt.Errorf("%w: %v", errRedisUnavailable, err)
			}
		}

		return 0, nil
	}

	return 0, errOTPNotFound
}

// Clear destroys the record and attempt counter for email after a successful
// reset.
func (s *otpStore) Clear(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.recordKey(email), s.attemptsKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return nil
}

func encodeOTPRecord(record *otpRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(otpRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.Digest[:])

	return buf.Bytes(), nil
}

func decodeOTPRecord(data []byte) (*otpRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != otpRecordVersionV1 {
		return nil, errors.New("invalid otp record version")
	}

	record := &otpRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.Digest[:]); err != nil {
		return nil, err
	}

	return record, nil
}
