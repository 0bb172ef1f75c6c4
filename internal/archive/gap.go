package archive

import (
	"time"

	"poe-trade-archive/internal/trade"
)

// Metadata describes the last fetch merged into a partition and the gaps
// detected so far.
type Metadata struct {
	LastFetchAtMs     int64    `json:"lastFetchAtMs,omitempty"`
	LastFetchID       string   `json:"lastFetchId,omitempty"`
	LastFetchNewestMs *int64   `json:"lastFetchNewestMs"`
	LastFetchOldestMs *int64   `json:"lastFetchOldestMs"`
	LastFetchKeys     []string `json:"lastFetchKeys"`
	GapCount          int      `json:"gapCount"`
	LastGapAtMs       *int64   `json:"lastGapAtMs"`
	LastGapFromMs     *int64   `json:"lastGapFromMs"`
	LastGapToMs       *int64   `json:"lastGapToMs"`
}

// GapInfo is the outcome of comparing a batch with the previous fetch. It is
// a detection signal only; nothing is refetched.
type GapInfo struct {
	Detected bool
	// FromMs is the newest sale time of the previous fetch.
	FromMs int64
	// ToMs is the oldest sale time of the current fetch.
	ToMs int64
}

// From returns the start of the uncovered window.
func (g GapInfo) From() time.Time { return time.UnixMilli(g.FromMs) }

// To returns the end of the uncovered window.
func (g GapInfo) To() time.Time { return time.UnixMilli(g.ToMs) }

// DetectGap flags a possibly missed window between the previous fetch and
// the current batch. A contiguous fetch either reaches back to the previous
// newest sale or shares at least one trade key with the previous fetch.
func DetectGap(prev Metadata, batch trade.Batch) GapInfo {
	if prev.LastFetchNewestMs == nil {
		return GapInfo{}
	}
	oldest, ok := batch.Oldest()
	if !ok {
		return GapInfo{}
	}
	prevNewest := *prev.LastFetchNewestMs
	if oldest <= prevNewest {
		return GapInfo{}
	}
	for _, key := range prev.LastFetchKeys {
		if _, shared := batch.Keys[key]; shared {
			return GapInfo{}
		}
	}
	return GapInfo{Detected: true, FromMs: prevNewest, ToMs: oldest}
}
