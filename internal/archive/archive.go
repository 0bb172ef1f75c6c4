package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"poe-trade-archive/internal/storage"
	"poe-trade-archive/internal/trade"
)

// Options tune the archive.
type Options struct {
	// Now is the clock used for fetch and gap timestamps.
	Now func() time.Time
	// NewFetchID labels each merged batch in metadata and logs.
	NewFetchID func() string
}

// Archive merges fetched batches into per-partition append-only record sets.
// Calls for the same partition must be serialized by the caller.
type Archive struct {
	slots      storage.SlotStore
	now        func() time.Time
	newFetchID func() string
	logger     zerolog.Logger
}

// Partition is the stored state of one partition.
type Partition struct {
	Name    string
	Records []trade.Record
	Meta    Metadata
}

// Result reports the outcome of one PersistBatch call.
type Result struct {
	Records []trade.Record
	Gap     GapInfo
	Meta    Metadata
	FetchID string

	Accepted   int
	Rejected   int
	Duplicates int
	// Added counts trade keys that were not archived before.
	Added int
	// Stored is the number of records actually written; lower than
	// len(Records) when the slot forced truncation.
	Stored    int
	Persisted bool
}

// New constructs an Archive over a slot store.
func New(slots storage.SlotStore, opts Options, logger zerolog.Logger) *Archive {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewFetchID == nil {
		opts.NewFetchID = uuid.NewString
	}
	return &Archive{
		slots:      slots,
		now:        opts.Now,
		newFetchID: opts.NewFetchID,
		logger:     logger.With().Str("component", "archive").Logger(),
	}
}

// Load reads a partition. Damaged storage reads as an empty partition;
// errors are only returned for failed storage I/O.
func (a *Archive) Load(ctx context.Context, partition string) (Partition, error) {
	key := SlotKey(partition)
	payload, err := a.slots.LoadSlot(ctx, key)
	if err != nil {
		return Partition{}, fmt.Errorf("load partition: %w", err)
	}

	records, meta, dropped, ok := decodePartition(payload)
	if !ok {
		a.logger.Warn().Str("partition", partition).Int("bytes", len(payload)).
			Msg("archive payload unreadable; treating partition as empty")
	}
	if dropped > 0 {
		a.logger.Warn().Str("partition", partition).Int("dropped", dropped).
			Msg("dropped invalid archived records")
	}
	return Partition{Name: trade.NormalizePartition(partition), Records: records, Meta: meta}, nil
}

// PersistBatch normalizes a raw batch, detects a gap against the previous
// fetch, merges the batch into the stored partition and writes it back.
func (a *Archive) PersistBatch(ctx context.Context, partition string, entries []trade.RawEntry) (Result, error) {
	current := trade.NormalizeBatch(partition, entries)

	existing, err := a.Load(ctx, partition)
	if err != nil {
		return Result{}, err
	}

	gap := DetectGap(existing.Meta, current)

	merged := make(map[string]trade.Record, len(existing.Records)+len(current.Records))
	for _, rec := range existing.Records {
		merged[rec.TradeKey] = rec
	}
	added := 0
	for _, rec := range current.Records {
		if _, known := merged[rec.TradeKey]; !known {
			added++
		}
		merged[rec.TradeKey] = rec
	}
	records := make([]trade.Record, 0, len(merged))
	for _, rec := range merged {
		records = append(records, rec)
	}
	trade.SortNewestFirst(records)

	fetchID := a.newFetchID()
	meta := a.nextMeta(existing.Meta, current, gap, fetchID)

	stored, persisted, err := a.write(ctx, partition, records, meta)
	if err != nil {
		return Result{}, err
	}

	logEvent := a.logger.Info()
	if gap.Detected {
		logEvent = a.logger.Warn().Time("gap_from", gap.From()).Time("gap_to", gap.To())
	}
	logEvent.Str("partition", partition).
		Str("fetch_id", fetchID).
		Int("accepted", len(current.Records)).
		Int("added", added).
		Int("archived", len(records)).
		Int("stored", stored).
		Bool("gap", gap.Detected).
		Msg("batch merged")

	return Result{
		Records:    records,
		Gap:        gap,
		Meta:       meta,
		FetchID:    fetchID,
		Accepted:   len(current.Records),
		Rejected:   current.Rejected,
		Duplicates: current.Duplicates,
		Added:      added,
		Stored:     stored,
		Persisted:  persisted,
	}, nil
}

func (a *Archive) nextMeta(prev Metadata, current trade.Batch, gap GapInfo, fetchID string) Metadata {
	nowMs := a.now().UnixMilli()
	next := Metadata{
		LastFetchAtMs: nowMs,
		LastFetchID:   fetchID,
		LastFetchKeys: current.KeyList(),
		GapCount:      prev.GapCount,
		LastGapAtMs:   prev.LastGapAtMs,
		LastGapFromMs: prev.LastGapFromMs,
		LastGapToMs:   prev.LastGapToMs,
	}
	if newest, ok := current.Newest(); ok {
		next.LastFetchNewestMs = &newest
	}
	if oldest, ok := current.Oldest(); ok {
		next.LastFetchOldestMs = &oldest
	}
	if gap.Detected {
		from, to := gap.FromMs, gap.ToMs
		next.GapCount++
		next.LastGapAtMs = &nowMs
		next.LastGapFromMs = &from
		next.LastGapToMs = &to
	}
	return next
}

// write stores records and meta as one slot payload. When the slot rejects
// the payload as too large the oldest tenth of the records is dropped and the
// write retried; if even an empty record set does not fit the write is
// abandoned without error.
func (a *Archive) write(ctx context.Context, partition string, records []trade.Record, meta Metadata) (int, bool, error) {
	key := SlotKey(partition)
	rows := records
	for {
		payload, err := encodePartition(rows, meta)
		if err != nil {
			return 0, false, fmt.Errorf("encode partition: %w", err)
		}

		err = a.slots.SaveSlot(ctx, key, payload)
		if err == nil {
			if len(rows) < len(records) {
				a.logger.Warn().Str("partition", partition).
					Int("kept", len(rows)).
					Int("dropped", len(records)-len(rows)).
					Msg("archive truncated to fit storage")
			}
			return len(rows), true, nil
		}
		if !errors.Is(err, storage.ErrPayloadTooLarge) {
			return 0, false, fmt.Errorf("save partition: %w", err)
		}
		if len(rows) == 0 {
			a.logger.Error().Str("partition", partition).Msg("archive does not fit storage even when empty; skipping write")
			return 0, false, nil
		}
		rows = rows[:len(rows)*9/10]
	}
}
