package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poe-trade-archive/internal/config"
	"poe-trade-archive/internal/fetcher"
	"poe-trade-archive/internal/trade"
)

const historyPage = `{"result":[
	{"item_id":"i3","time":"2024-03-06T09:00:00Z","item":{"typeLine":"Grim Bane","baseType":"Ruby Ring","frameType":2,"ilvl":84,"extended":{"category":"rings"},"explicitMods":["+20 to Strength"]},"price":{"amount":1,"currency":"divine"}},
	{"item_id":"i2","time":"2024-03-05T18:00:00Z","item":{"typeLine":"Chaos Orb","frameType":5},"price":{"amount":40,"currency":"chaos"}},
	{"item_id":"i1","time":"2024-03-05T08:00:00Z","item":{"typeLine":"Tabula Rasa","baseType":"Simple Robe","frameType":3},"price":{"amount":12.5,"currency":"chaos"}},
	{"item_id":"free","time":"2024-03-05T07:00:00Z","item":{"typeLine":"Scroll"}}
]}`

type staticHistory struct {
	payload string
}

func (s staticHistory) FetchHistory(_ context.Context, league string) (fetcher.Batch, error) {
	entries, skipped, err := trade.DecodeBatch([]byte(s.payload))
	if err != nil {
		return fetcher.Batch{}, err
	}
	return fetcher.Batch{League: league, Entries: entries, Skipped: skipped}, nil
}

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.Backend = config.BackendFile
	cfg.Storage.Dir = t.TempDir()
	cfg.Feed.Leagues = []string{"Settlers"}
	cfg.Stats.PreferredCurrency = "chaos"
	cfg.Stats.RateBase = "divine"
	cfg.Stats.RateQuote = "chaos"
	cfg.Stats.Timezone = "UTC"
	cfg.Export.MaxRows = 100

	out := &bytes.Buffer{}
	a := NewApp(cfg, zerolog.Nop())
	a.Out = out
	a.history = staticHistory{payload: historyPage}
	return a, out
}

func TestFetchThenShow(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.Fetch(ctx, FetchOptions{}))
	assert.Contains(t, out.String(), "Settlers: 3 accepted, 3 new, 1 rejected, 3 archived")

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{Limit: 10}))
	text := out.String()
	assert.Contains(t, text, "Showing: 3 • 3 new • Archived: 3")
	assert.Contains(t, text, "Grim Bane")
	assert.Contains(t, text, "Rare • Rings • Ruby Ring")
	assert.Contains(t, text, "12.5 chaos")
	assert.Less(t, strings.Index(text, "Grim Bane"), strings.Index(text, "Tabula Rasa"), "newest first")
}

func TestShowFilterAndOnlyNew(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Fetch(ctx, FetchOptions{}))

	require.NoError(t, a.MarkSeen(ctx, MarkSeenOptions{ItemIDs: []string{"i3"}}))
	assert.Contains(t, out.String(), "marked 1 new item(s) as seen")

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{OnlyNew: true}))
	assert.NotContains(t, out.String(), "Grim Bane")
	assert.Contains(t, out.String(), "Tabula Rasa")

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{Filter: "strength"}))
	assert.Contains(t, out.String(), "Grim Bane")
	assert.NotContains(t, out.String(), "Chaos Orb")

	require.NoError(t, a.MarkSeen(ctx, MarkSeenOptions{}))
	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{OnlyNew: true}))
	assert.Contains(t, out.String(), "no sales found")
}

func TestStatsReport(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Fetch(ctx, FetchOptions{}))

	out.Reset()
	require.NoError(t, a.Stats(ctx, StatsOptions{ExchangeRate: "150"}))
	text := out.String()
	assert.Contains(t, text, "Sales: 3")
	assert.Contains(t, text, "Income: 52.5 chaos + 1 divine")
	assert.Contains(t, text, "Income (chaos): 202.5 chaos")
	assert.Contains(t, text, "Best day: 2024-03-06: 150 chaos • 1 sold • 150 chaos")
	assert.Contains(t, text, "Worst day: 2024-03-05: 52.5 chaos • 2 sold • 52.5 chaos")
	assert.Contains(t, text, "Week of 2024-03-04")
}

func TestStatsWithoutArchive(t *testing.T) {
	a, out := newTestApp(t)

	require.NoError(t, a.Stats(context.Background(), StatsOptions{}))
	assert.Contains(t, out.String(), "Best day: —")
	assert.Contains(t, out.String(), "Income: —")
}

func TestExportCSV(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Fetch(ctx, FetchOptions{}))

	path := filepath.Join(t.TempDir(), "out", "sales.csv")
	require.NoError(t, a.Export(ctx, ExportOptions{CSVPath: path, MaxRows: 2}))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "time", rows[0][0])
	assert.Equal(t, "i3", rows[1][1])
	assert.Equal(t, "i2", rows[2][1])
}

func TestExportWindow(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Fetch(ctx, FetchOptions{}))

	from := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "day.csv")
	require.NoError(t, a.Export(ctx, ExportOptions{CSVPath: path, From: &from, To: &to}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "i3")
	assert.Contains(t, string(raw), "i1")

	assert.Error(t, a.Export(ctx, ExportOptions{CSVPath: path, From: &to, To: &from}))
	assert.Error(t, a.Export(ctx, ExportOptions{}))
}

func TestImportFiles(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "page.json")
	require.NoError(t, os.WriteFile(path, []byte(historyPage), 0o644))

	require.NoError(t, a.Import(ctx, ImportOptions{Paths: []string{path}, DryRun: true}))
	assert.Contains(t, out.String(), "3 accepted, 1 rejected, 0 duplicates")

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{}))
	assert.Contains(t, out.String(), "Archived: 0", "dry run writes nothing")

	require.NoError(t, a.Import(ctx, ImportOptions{Paths: []string{path, path}}))
	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{}))
	assert.Contains(t, out.String(), "Archived: 3")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"nope":1}`), 0o644))
	assert.ErrorIs(t, a.Import(ctx, ImportOptions{Paths: []string{bad}}), trade.ErrMissingResult)
}

func TestSlotsListing(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Fetch(ctx, FetchOptions{}))
	require.NoError(t, a.MarkSeen(ctx, MarkSeenOptions{}))

	out.Reset()
	require.NoError(t, a.Slots(ctx))
	assert.Contains(t, out.String(), "archive/v1/settlers")
	assert.Contains(t, out.String(), "seen/v1")
}

func TestOpenSlotsRejectsUnknownBackend(t *testing.T) {
	a, _ := newTestApp(t)
	a.Config.Storage.Backend = "s3"

	_, closer, err := a.openSlots(context.Background())
	require.Error(t, err)
	closer()
}
