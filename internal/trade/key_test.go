package trade

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sale(id, at, amount, currency string) RawEntry {
	entry := RawEntry{ItemID: id, Time: at}
	if currency != "" {
		entry.Price = &RawPrice{Amount: []byte(amount), Currency: []byte(`"` + currency + `"`)}
	}
	return entry
}

func TestKeyIsPartitionInsensitiveToCaseAndSpace(t *testing.T) {
	rec, ok := Normalize(sale("id1", "2024-03-05T10:15:00Z", "1.50", "divine"))
	require.True(t, ok)

	a := Key("Settlers", rec)
	b := Key("  settlers ", rec)
	assert.Equal(t, a, b)
	assert.Equal(t, "settlers|id1|2024-03-05T10:15:00Z|1.5|divine", a)
	assert.Equal(t, "hardcore%20settlers|id1|2024-03-05T10:15:00Z|1.5|divine", Key("Hardcore Settlers", rec))
}

func TestKeyEmptyWithoutPrice(t *testing.T) {
	rec, ok := Normalize(sale("id1", "2024-03-05T10:15:00Z", "", ""))
	require.True(t, ok)
	assert.Equal(t, "", Key("league", rec))
}

func TestNormalizeBatchDedupKeepsFirst(t *testing.T) {
	entries := []RawEntry{
		sale("a", "2024-03-05T10:00:00Z", "10", "chaos"),
		sale("b", "2024-03-05T12:00:00Z", "1", "divine"),
		sale("a", "2024-03-05T10:00:00Z", "10", "chaos"),
		sale("c", "2024-03-05T11:00:00Z", "", ""),
		sale("", "2024-03-05T11:00:00Z", "3", "chaos"),
		sale("a", "2024-03-05T10:00:00Z", "11", "chaos"),
	}

	batch := NormalizeBatch("league", entries)
	require.Len(t, batch.Records, 3)
	assert.Equal(t, 1, batch.Duplicates)
	assert.Equal(t, 2, batch.Rejected)
	assert.Len(t, batch.Keys, 3)

	assert.Equal(t, "b", batch.Records[0].ItemID, "newest first")
	newest, _ := batch.Newest()
	oldest, _ := batch.Oldest()
	assert.Greater(t, newest, oldest)
	for _, rec := range batch.Records {
		assert.NotEmpty(t, rec.TradeKey)
		assert.Contains(t, batch.Keys, rec.TradeKey)
	}
	assert.Equal(t, batch.KeyList()[0], batch.Records[0].TradeKey)
}

func TestSellableRecordsNeverCarryHalfAPrice(t *testing.T) {
	entries := []RawEntry{
		sale("a", "2024-03-05T10:00:00Z", "10", "chaos"),
		{ItemID: "b", Time: "2024-03-05T10:00:00Z", Price: &RawPrice{Amount: []byte("4")}},
		{ItemID: "c", Time: "2024-03-05T10:00:00Z", Price: &RawPrice{Currency: []byte(`"chaos"`)}},
	}
	want := []bool{true, false, false}
	for i, entry := range entries {
		rec, ok := Normalize(entry)
		require.True(t, ok)
		assert.Equal(t, want[i], rec.Price != nil, entry.ItemID)
		if rec.Price != nil {
			assert.NotEmpty(t, rec.Price.Currency)
			assert.True(t, rec.Price.Amount.Equal(decimal.NewFromInt(10)))
		}
	}
}
