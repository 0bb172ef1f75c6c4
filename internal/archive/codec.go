package archive

import (
	"bytes"
	"encoding/json"
	"net/url"

	"poe-trade-archive/internal/trade"
)

const slotPrefix = "archive/v1/"

// SlotKey maps a partition name onto its storage slot.
func SlotKey(partition string) string {
	return slotPrefix + url.PathEscape(trade.NormalizePartition(partition))
}

type storedPartition struct {
	Records []trade.Record `json:"records"`
	Meta    Metadata       `json:"meta"`
}

type loosePartition struct {
	Records []json.RawMessage `json:"records"`
	Meta    json.RawMessage   `json:"meta"`
}

func encodePartition(records []trade.Record, meta Metadata) ([]byte, error) {
	if records == nil {
		records = []trade.Record{}
	}
	return json.Marshal(storedPartition{Records: records, Meta: meta})
}

// decodePartition never fails: unreadable payloads decode as an empty
// partition and damaged records are dropped. The second return value counts
// dropped records.
func decodePartition(payload []byte) ([]trade.Record, Metadata, int, bool) {
	if len(payload) == 0 {
		return nil, Metadata{}, 0, true
	}
	var loose loosePartition
	if err := json.Unmarshal(payload, &loose); err != nil {
		return nil, Metadata{}, 0, false
	}

	records, dropped := sanitize(loose.Records)
	return records, decodeMetadata(loose.Meta), dropped, true
}

// decodeMetadata reads each field on its own so a single malformed value
// only loses that field.
func decodeMetadata(raw json.RawMessage) Metadata {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Metadata{}
	}

	var meta Metadata
	decodeField(fields, "lastFetchAtMs", &meta.LastFetchAtMs)
	decodeField(fields, "lastFetchId", &meta.LastFetchID)
	meta.LastFetchNewestMs = optionalMs(fields, "lastFetchNewestMs")
	meta.LastFetchOldestMs = optionalMs(fields, "lastFetchOldestMs")
	meta.LastFetchKeys = stringElements(fields["lastFetchKeys"])
	decodeField(fields, "gapCount", &meta.GapCount)
	meta.LastGapAtMs = optionalMs(fields, "lastGapAtMs")
	meta.LastGapFromMs = optionalMs(fields, "lastGapFromMs")
	meta.LastGapToMs = optionalMs(fields, "lastGapToMs")

	if meta.GapCount < 0 {
		meta.GapCount = 0
	}
	return meta
}

func decodeField[T any](fields map[string]json.RawMessage, name string, dst *T) {
	raw, ok := fields[name]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

func optionalMs(fields map[string]json.RawMessage, name string) *int64 {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return nil
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func stringElements(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// sanitize keeps records that satisfy the canonical shape, first occurrence
// of a trade key wins. The result is sorted newest first.
func sanitize(raw []json.RawMessage) ([]trade.Record, int) {
	out := make([]trade.Record, 0, len(raw))
	keys := make(map[string]struct{}, len(raw))
	dropped := 0
	for _, item := range raw {
		var rec trade.Record
		if err := json.Unmarshal(item, &rec); err != nil || !validStored(rec) || !hasAmount(item) {
			dropped++
			continue
		}
		if _, dup := keys[rec.TradeKey]; dup {
			dropped++
			continue
		}
		keys[rec.TradeKey] = struct{}{}
		out = append(out, rec)
	}
	trade.SortNewestFirst(out)
	return out, dropped
}

func validStored(rec trade.Record) bool {
	return rec.TradeKey != "" &&
		rec.ItemID != "" &&
		rec.TimeISO != "" &&
		rec.TimeMs != 0 &&
		rec.Sellable()
}

// hasAmount reports whether the stored price carries an explicit amount.
// A missing or null amount would otherwise decode as zero.
func hasAmount(item json.RawMessage) bool {
	var shape struct {
		Price *struct {
			Amount json.RawMessage `json:"amount"`
		} `json:"price"`
	}
	if err := json.Unmarshal(item, &shape); err != nil || shape.Price == nil {
		return false
	}
	return !isNull(shape.Price.Amount)
}
