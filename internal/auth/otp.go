package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	otpKeyPrefix   = "staffora:otp:"
	otpMaxAttempts = 5
)

type otpRecord struct {
	UserID int64  `json:"user_id"`
	Code   string `json:"code"`
}

// OTPStore keeps one-time login codes in Redis.
type OTPStore struct {
	client *redis.Client
	ttl    time.Duration
	length int
}

// NewOTPStore constructs OTPStore. Codes shorter than 4 digits are raised to 6.
func NewOTPStore(client *redis.Client, ttl time.Duration, length int) *OTPStore {
	if length < 4 {
		length = 6
	}
	return &OTPStore{client: client, ttl: ttl, length: length}
}

// Create stores a new code for userID and returns the challenge identifier.
func (s *OTPStore) Create(ctx context.Context, userID int64) (string, string, error) {
	code, err := randomDigits(s.length)
	if err != nil {
		return "", "", err
	}
	id := uuid.NewString()
	data, err := json.Marshal(otpRecord{UserID: userID, Code: code})
	if err != nil {
		return "", "", err
	}
	if err := s.client.Set(ctx, otpKeyPrefix+id, data, s.ttl).Err(); err != nil {
		return "", "", fmt.Errorf("store otp: %w", err)
	}
	return id, code, nil
}

// Verify checks code against the challenge. A match consumes the challenge.
// Every call reserves an attempt with INCR before comparing, so concurrent
// guesses share one budget. The record TTL is never extended.
func (s *OTPStore) Verify(ctx context.Context, challengeID, code string) (int64, error) {
	key := otpKeyPrefix + challengeID
	attemptsKey := key + ":attempts"
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrOTPInvalid
		}
		return 0, err
	}
	var rec otpRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, err
	}

	var incr *redis.IntCmd
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, attemptsKey)
		pipe.Expire(ctx, attemptsKey, s.ttl)
		return nil
	}); err != nil {
		return 0, fmt.Errorf("count otp attempt: %w", err)
	}
	attempts := incr.Val()
	if attempts > otpMaxAttempts {
		return 0, ErrOTPLocked
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) == 1 {
		removed, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return 0, err
		}
		if removed == 0 {
			// Consumed by a concurrent verification.
			return 0, ErrOTPInvalid
		}
		_ = s.client.Del(ctx, attemptsKey).Err()
		return rec.UserID, nil
	}
	if attempts >= otpMaxAttempts {
		return 0, ErrOTPLocked
	}
	return 0, ErrOTPInvalid
}

func randomDigits(n int) (string, error) {
	buf := make([]byte, n)
	ten := big.NewInt(10)
	for i := range buf {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}
