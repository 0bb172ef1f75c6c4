package fetcher

import (
	"context"
	"encoding/json"

	"poe-trade-archive/internal/trade"
)

// Batch is one decoded trade history response.
type Batch struct {
	League  string
	Entries []trade.RawEntry
	// Skipped counts result items that were not JSON objects.
	Skipped int
	Payload json.RawMessage
}

// HistoryFetcher retrieves the most recent trade history page for a league.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, league string) (Batch, error)
}
