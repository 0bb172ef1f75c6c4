package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

const slotFileExt = ".json"

// FileStore keeps each slot as a JSON file inside a directory. Saves go
// through a temp file and rename so a slot is replaced whole or not at all.
type FileStore struct {
	dir      string
	maxBytes int
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, maxBytes int) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{dir: dir, maxBytes: maxBytes}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+slotFileExt)
}

// LoadSlot reads one slot file.
func (f *FileStore) LoadSlot(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read slot %q: %w", key, err)
	}
	return payload, nil
}

// SaveSlot atomically replaces one slot file.
func (f *FileStore) SaveSlot(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkCapacity(payload, f.maxBytes); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("create temp slot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		if errors.Is(err, syscall.ENOSPC) {
			return ErrPayloadTooLarge
		}
		return fmt.Errorf("write slot %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close slot %q: %w", key, err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		return fmt.Errorf("replace slot %q: %w", key, err)
	}
	return nil
}

// ListSlots lists slot files ordered by key.
func (f *FileStore) ListSlots(ctx context.Context) ([]SlotInfo, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	slots := make([]SlotInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, slotFileExt) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, slotFileExt))
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		slots = append(slots, SlotInfo{Key: key, Bytes: int(info.Size()), UpdatedAt: info.ModTime()})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Key < slots[j].Key })
	return slots, nil
}

var (
	_ SlotStore  = (*FileStore)(nil)
	_ SlotLister = (*FileStore)(nil)
)
