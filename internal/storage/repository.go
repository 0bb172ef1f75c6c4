package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgProgramLimitExceeded is raised for values beyond postgres size limits.
const pgProgramLimitExceeded = "54000"

const (
	createSlotsTableSQL = `CREATE TABLE IF NOT EXISTS archive_slots (
        slot_key   TEXT PRIMARY KEY,
        payload    JSONB NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	loadSlotSQL = `SELECT payload FROM archive_slots WHERE slot_key = $1;`

	saveSlotSQL = `INSERT INTO archive_slots (slot_key, payload, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (slot_key) DO UPDATE
    SET payload    = EXCLUDED.payload,
        updated_at = EXCLUDED.updated_at;`

	listSlotsSQL = `SELECT slot_key, octet_length(payload::text), updated_at
    FROM archive_slots
    ORDER BY slot_key;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// Store keeps archive slots in PostgreSQL, one jsonb row per slot.
type Store struct {
	pool     *pgxpool.Pool
	maxBytes int
}

// NewStore wires a pgx pool into a Store. maxBytes <= 0 disables the size check.
func NewStore(pool *pgxpool.Pool, maxBytes int) *Store {
	return &Store{pool: pool, maxBytes: maxBytes}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the slot table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSlotsTableSQL); err != nil {
		return fmt.Errorf("create archive_slots: %w", err)
	}
	return nil
}

// LoadSlot reads one slot payload.
func (s *Store) LoadSlot(ctx context.Context, key string) ([]byte, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var payload []byte
	if scanErr := pool.QueryRow(ctx, loadSlotSQL, key).Scan(&payload); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load slot %q: %w", key, scanErr)
	}
	return payload, nil
}

// SaveSlot upserts one slot payload in a single statement.
func (s *Store) SaveSlot(ctx context.Context, key string, payload []byte) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if err := checkCapacity(payload, s.maxBytes); err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, saveSlotSQL, key, payload); execErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(execErr, &pgErr) && pgErr.Code == pgProgramLimitExceeded {
			return ErrPayloadTooLarge
		}
		return fmt.Errorf("save slot %q: %w", key, execErr)
	}
	return nil
}

// ListSlots lists stored slots ordered by key.
func (s *Store) ListSlots(ctx context.Context) ([]SlotInfo, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSlotsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list slots: %w", queryErr)
	}
	defer rows.Close()

	slots := make([]SlotInfo, 0)
	for rows.Next() {
		var info SlotInfo
		if err := rows.Scan(&info.Key, &info.Bytes, &info.UpdatedAt); err != nil {
			return nil, err
		}
		slots = append(slots, info)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock also dies with the session
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

var (
	_ SlotStore      = (*Store)(nil)
	_ SlotLister     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
