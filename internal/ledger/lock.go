package ledger

import (
	"context"
	"fmt"
	"sync"

	"auction-engine/internal/auctionerrors"
)

// KeyedMutex provides an exclusive critical section per auction id.
// Operations on different auctions never contend with each other.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	token chan struct{} // capacity 1; holding the token means holding the lock
	refs  int
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*lockSlot)}
}

// Lock acquires the exclusive section for key. The wait is bounded by ctx;
// an expired or cancelled context returns ErrLockWaitTimeout without
// acquiring the lock.
func (km *KeyedMutex) Lock(ctx context.Context, key string) error {
	km.mu.Lock()
	slot, ok := km.slots[key]
	if !ok {
		slot = &lockSlot{token: make(chan struct{}, 1)}
		km.slots[key] = slot
	}
	slot.refs++
	km.mu.Unlock()

	select {
	case slot.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		km.release(key, slot)
		return fmt.Errorf("lock %s: %w: %v", key, auctionerrors.ErrLockWaitTimeout, ctx.Err())
	}
}

// Unlock releases the exclusive section for key. It must only be called by
// the holder of the lock.
func (km *KeyedMutex) Unlock(key string) {
	km.mu.Lock()
	slot, ok := km.slots[key]
	km.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("ledger: unlock of unheld key %q", key))
	}

	<-slot.token
	km.release(key, slot)
}

// release drops one reference to the slot and frees the map entry once no
// holder or waiter remains, so idle auctions do not accumulate lock state.
func (km *KeyedMutex) release(key string, slot *lockSlot) {
	km.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(km.slots, key)
	}
	km.mu.Unlock()
}
