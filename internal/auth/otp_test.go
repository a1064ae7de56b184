package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOTPStore(t *testing.T) (*OTPStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), PoolSize: 32})
	t.Cleanup(func() { _ = client.Close() })
	return NewOTPStore(client, 5*time.Minute, 6), mr
}

func wrongCode(code string) string {
	if code[0] == '9' {
		return "8" + code[1:]
	}
	return "9" + code[1:]
}

func TestOTPConcurrentGuessesShareAttemptBudget(t *testing.T) {
	store, _ := newOTPStore(t)
	ctx := context.Background()
	id, code, err := store.Create(ctx, 42)
	require.NoError(t, err)
	wrong := wrongCode(code)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		invalid int
		locked  int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Verify(ctx, id, wrong)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrOTPInvalid):
				invalid++
			case errors.Is(err, ErrOTPLocked):
				locked++
			default:
				t.Errorf("unexpected verify result: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, otpMaxAttempts-1, invalid, "only the attempt budget is compared")
	assert.Equal(t, 100-(otpMaxAttempts-1), locked)

	_, err = store.Verify(ctx, id, code)
	assert.ErrorIs(t, err, ErrOTPLocked)
}

func TestOTPVerifyConsumesChallengeOnce(t *testing.T) {
	store, mr := newOTPStore(t)
	ctx := context.Background()
	id, code, err := store.Create(ctx, 42)
	require.NoError(t, err)

	_, err = store.Verify(ctx, id, wrongCode(code))
	assert.ErrorIs(t, err, ErrOTPInvalid)

	userID, err := store.Verify(ctx, id, code)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
	assert.Empty(t, mr.Keys(), "record and attempt counter removed")

	_, err = store.Verify(ctx, id, code)
	assert.ErrorIs(t, err, ErrOTPInvalid)
}
