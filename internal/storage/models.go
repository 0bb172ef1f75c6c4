package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrPayloadTooLarge reports a write rejected for exceeding slot capacity.
	// Callers may shrink the payload and retry.
	ErrPayloadTooLarge = errors.New("storage: payload exceeds slot capacity")
)

// SlotStore persists opaque payloads under string keys. A save replaces the
// whole slot or leaves it untouched.
type SlotStore interface {
	// LoadSlot returns nil, nil when the slot does not exist.
	LoadSlot(ctx context.Context, key string) ([]byte, error)
	SaveSlot(ctx context.Context, key string, payload []byte) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// SlotInfo describes a stored slot without its payload.
type SlotInfo struct {
	Key       string
	Bytes     int
	UpdatedAt time.Time
}

// SlotLister enumerates stored slots.
type SlotLister interface {
	ListSlots(ctx context.Context) ([]SlotInfo, error)
}

func checkCapacity(payload []byte, maxBytes int) error {
	if maxBytes > 0 && len(payload) > maxBytes {
		return ErrPayloadTooLarge
	}
	return nil
}
