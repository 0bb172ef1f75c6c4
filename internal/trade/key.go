package trade

import (
	"net/url"
	"sort"
	"strings"
)

// NormalizePartition folds case and surrounding whitespace of a partition (league) name.
func NormalizePartition(partition string) string {
	return strings.ToLower(strings.TrimSpace(partition))
}

// Key derives the dedup identity of a sale within a partition. It returns ""
// for records that are not sellable.
func Key(partition string, rec Record) string {
	if !rec.Sellable() || rec.ItemID == "" || rec.TimeISO == "" {
		return ""
	}
	return strings.Join([]string{
		url.PathEscape(NormalizePartition(partition)),
		rec.ItemID,
		rec.TimeISO,
		rec.Price.Amount.String(),
		rec.Price.Currency,
	}, "|")
}

// Batch is one fetch worth of sellable, keyed, de-duplicated records.
type Batch struct {
	// Records are sorted newest first.
	Records []Record
	Keys    map[string]struct{}
	// Rejected counts entries dropped as malformed or unsellable.
	Rejected int
	// Duplicates counts entries collapsed onto an earlier key.
	Duplicates int
}

// NormalizeBatch normalizes raw entries, drops unsellable ones and keeps the
// first occurrence of every trade key.
func NormalizeBatch(partition string, entries []RawEntry) Batch {
	batch := Batch{
		Records: make([]Record, 0, len(entries)),
		Keys:    make(map[string]struct{}, len(entries)),
	}
	for _, entry := range entries {
		rec, ok := Normalize(entry)
		if !ok || !rec.Sellable() {
			batch.Rejected++
			continue
		}
		key := Key(partition, rec)
		if _, seen := batch.Keys[key]; seen {
			batch.Duplicates++
			continue
		}
		rec.TradeKey = key
		batch.Keys[key] = struct{}{}
		batch.Records = append(batch.Records, rec)
	}
	SortNewestFirst(batch.Records)
	return batch
}

// Newest returns the newest record time in milliseconds.
func (b Batch) Newest() (int64, bool) {
	if len(b.Records) == 0 {
		return 0, false
	}
	return b.Records[0].TimeMs, true
}

// Oldest returns the oldest record time in milliseconds.
func (b Batch) Oldest() (int64, bool) {
	if len(b.Records) == 0 {
		return 0, false
	}
	return b.Records[len(b.Records)-1].TimeMs, true
}

// KeyList returns the batch keys in record order.
func (b Batch) KeyList() []string {
	keys := make([]string, 0, len(b.Records))
	for _, rec := range b.Records {
		keys = append(keys, rec.TradeKey)
	}
	return keys
}

// SortNewestFirst orders records by descending sale time; equal times fall
// back to trade key so the order does not depend on arrival order.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].TimeMs != records[j].TimeMs {
			return records[i].TimeMs > records[j].TimeMs
		}
		return records[i].TradeKey < records[j].TradeKey
	})
}
