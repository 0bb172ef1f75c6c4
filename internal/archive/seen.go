package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"poe-trade-archive/internal/storage"
)

const (
	seenSlotKey = "seen/v1"
	// MaxSeenIDs bounds the persisted seen set; the most recently added ids are kept.
	MaxSeenIDs = 2000
)

// SeenSet tracks item ids the user already acknowledged, in insertion order.
type SeenSet struct {
	ids   []string
	index map[string]struct{}
}

// NewSeenSet builds a set from ids, ignoring blanks and repeats.
func NewSeenSet(ids ...string) *SeenSet {
	s := &SeenSet{index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has reports whether id was marked seen.
func (s *SeenSet) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Add marks id seen and reports whether it was new.
func (s *SeenSet) Add(id string) bool {
	if id == "" || s.Has(id) {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// Len returns the number of ids.
func (s *SeenSet) Len() int { return len(s.ids) }

// Bounded returns the newest MaxSeenIDs ids in insertion order.
func (s *SeenSet) Bounded() []string {
	if len(s.ids) <= MaxSeenIDs {
		return append([]string(nil), s.ids...)
	}
	return append([]string(nil), s.ids[len(s.ids)-MaxSeenIDs:]...)
}

// LoadSeen reads the seen set. A damaged slot yields an empty set.
func LoadSeen(ctx context.Context, slots storage.SlotStore) (*SeenSet, error) {
	payload, err := slots.LoadSlot(ctx, seenSlotKey)
	if err != nil {
		return nil, fmt.Errorf("load seen set: %w", err)
	}
	if len(payload) == 0 {
		return NewSeenSet(), nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return NewSeenSet(), nil
	}
	set := NewSeenSet()
	for _, item := range raw {
		var id string
		if json.Unmarshal(item, &id) == nil {
			set.Add(id)
		}
	}
	return set, nil
}

// SaveSeen persists the bounded seen set.
func SaveSeen(ctx context.Context, slots storage.SlotStore, set *SeenSet) error {
	payload, err := json.Marshal(set.Bounded())
	if err != nil {
		return fmt.Errorf("encode seen set: %w", err)
	}
	if err := slots.SaveSlot(ctx, seenSlotKey, payload); err != nil {
		return fmt.Errorf("save seen set: %w", err)
	}
	return nil
}
