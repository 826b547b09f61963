package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hackgods/tarot-booking/internal/timeutil"
)

// Locker serializes work on one key. redisclient.Locker satisfies it across
// processes; LocalLocker within one process.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

func partitionKey(date time.Time, t WindowType) string {
	return fmt.Sprintf("partition:%s:%s", timeutil.FormatDate(date), t)
}

type keySlot struct {
	ch   chan struct{}
	refs int
}

// LocalLocker keeps a slot per key only while someone holds or waits on it.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*keySlot
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*keySlot)}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &keySlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()
	defer l.release(key, slot)

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrPartitionBusy, ctx.Err())
	}
	defer func() { <-slot.ch }()

	return fn(ctx)
}

func (l *LocalLocker) release(key string, slot *keySlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
