package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"auction-engine/internal/auctionerrors"
)

// Test that two goroutines on the same key never overlap
func TestKeyedMutex_Exclusive(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	ctx := context.Background()

	const goroutines = 20
	var (
		wg      sync.WaitGroup
		holders int
		max     int
		mu      sync.Mutex
	)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, km.Lock(ctx, "auction1"))
			mu.Lock()
			holders++
			if holders > max {
				max = holders
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			km.Unlock("auction1")
		}()
	}
	wg.Wait()

	require.Equal(t, 1, max, "at most one holder at a time")
}

// Test that locks on different keys do not contend
func TestKeyedMutex_IndependentKeys(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	ctx := context.Background()

	require.NoError(t, km.Lock(ctx, "auction1"))
	defer km.Unlock("auction1")

	// A second key must be acquirable immediately even while the first is held.
	acquireCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	require.NoError(t, km.Lock(acquireCtx, "auction2"))
	km.Unlock("auction2")
}

// Test that a bounded wait on a held lock returns ErrLockWaitTimeout
func TestKeyedMutex_WaitTimeout(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	ctx := context.Background()

	require.NoError(t, km.Lock(ctx, "auction1"))

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := km.Lock(waitCtx, "auction1")
	require.Error(t, err)
	require.True(t, errors.Is(err, auctionerrors.ErrLockWaitTimeout))

	// The timed-out waiter must not have corrupted the slot: unlocking and
	// relocking still works.
	km.Unlock("auction1")
	require.NoError(t, km.Lock(ctx, "auction1"))
	km.Unlock("auction1")
}

// Test that slots are freed once no holder or waiter remains
func TestKeyedMutex_SlotCleanup(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	ctx := context.Background()

	require.NoError(t, km.Lock(ctx, "auction1"))
	km.Unlock("auction1")

	km.mu.Lock()
	defer km.mu.Unlock()
	require.Empty(t, km.slots, "idle keys must not accumulate lock state")
}
