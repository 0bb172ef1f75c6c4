package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps slots in process memory. It backs dry runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	slots    map[string]memorySlot
	maxBytes int
	saves    int
}

type memorySlot struct {
	payload   []byte
	updatedAt time.Time
}

// NewMemoryStore builds an empty store. maxBytes <= 0 disables the size check.
func NewMemoryStore(maxBytes int) *MemoryStore {
	return &MemoryStore{slots: make(map[string]memorySlot), maxBytes: maxBytes}
}

// LoadSlot returns a copy of the slot payload.
func (m *MemoryStore) LoadSlot(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), slot.payload...), nil
}

// SaveSlot replaces the slot payload.
func (m *MemoryStore) SaveSlot(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if err := checkCapacity(payload, m.maxBytes); err != nil {
		return err
	}
	m.slots[key] = memorySlot{payload: append([]byte(nil), payload...), updatedAt: time.Now()}
	return nil
}

// ListSlots lists stored slots ordered by key.
func (m *MemoryStore) ListSlots(context.Context) ([]SlotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots := make([]SlotInfo, 0, len(m.slots))
	for key, slot := range m.slots {
		slots = append(slots, SlotInfo{Key: key, Bytes: len(slot.payload), UpdatedAt: slot.updatedAt})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Key < slots[j].Key })
	return slots, nil
}

// SaveAttempts counts SaveSlot calls, rejected ones included.
func (m *MemoryStore) SaveAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

var (
	_ SlotStore  = (*MemoryStore)(nil)
	_ SlotLister = (*MemoryStore)(nil)
)
