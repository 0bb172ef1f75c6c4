package trade

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, payload string) RawEntry {
	t.Helper()
	var entry RawEntry
	require.NoError(t, json.Unmarshal([]byte(payload), &entry))
	return entry
}

func TestNormalizeFullEntry(t *testing.T) {
	text := base64.StdEncoding.EncodeToString([]byte("Item Class: Rings\r\nRarity: Rare\r\nDoom Loop\r\nRuby Ring"))
	entry := decodeEntry(t, `{
		"item_id": "abc123",
		"time": "2024-03-05T10:15:00Z",
		"item": {
			"typeLine": " Doom Loop ",
			"baseType": "Ruby Ring",
			"frameType": 2,
			"ilvl": 84,
			"note": "~price 5 chaos",
			"icon": "https://example/icon.png",
			"implicitMods": ["+20% to Fire Resistance"],
			"explicitMods": ["+70 to maximum Life", "  "],
			"fracturedMods": ["+40% to Cold Resistance"],
			"craftedMods": ["+10 to Strength"],
			"enchantMods": [42],
			"extended": {"text": "`+text+`"}
		},
		"price": {"amount": 5, "currency": " Chaos "}
	}`)

	rec, ok := Normalize(entry)
	require.True(t, ok)
	assert.Equal(t, "abc123", rec.ItemID)
	assert.Equal(t, int64(1709633700000), rec.TimeMs)
	assert.Equal(t, "Doom Loop", rec.Name)
	assert.Equal(t, "Ruby Ring", rec.BaseType)
	assert.Equal(t, "Rare", rec.Rarity)
	assert.Equal(t, "Rings", rec.Category)
	require.NotNil(t, rec.ItemLevel)
	assert.Equal(t, 84, *rec.ItemLevel)
	require.NotNil(t, rec.Price)
	assert.True(t, rec.Price.Amount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "chaos", rec.Price.Currency)
	assert.Equal(t, "5 chaos", rec.PriceText())
	assert.Equal(t, []string{
		"+20% to Fire Resistance",
		"+70 to maximum Life",
		"+40% to Cold Resistance",
		"+10 to Strength",
	}, rec.Mods)
	assert.True(t, rec.IsFractured("+40% to Cold Resistance"))
	require.NotNil(t, rec.ItemText)
	assert.Equal(t, "Item Class: Rings\nRarity: Rare\nDoom Loop\nRuby Ring", *rec.ItemText)
}

func TestNormalizeRejectsMissingFields(t *testing.T) {
	cases := map[string]string{
		"missing id":   `{"time": "2024-03-05T10:15:00Z"}`,
		"missing time": `{"item_id": "x"}`,
		"bad time":     `{"item_id": "x", "time": "yesterday"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := Normalize(decodeEntry(t, payload))
			assert.False(t, ok)
		})
	}
}

func TestNormalizeNamesAndPriceFallbacks(t *testing.T) {
	rec, ok := Normalize(decodeEntry(t, `{"item_id":"x","time":"2024-03-05T10:15:00Z","item":{"baseType":"Vaal Regalia"}}`))
	require.True(t, ok)
	assert.Equal(t, "Vaal Regalia", rec.Name)
	assert.Nil(t, rec.Price)
	assert.False(t, rec.Sellable())

	rec, ok = Normalize(decodeEntry(t, `{"item_id":"x","time":"2024-03-05T10:15:00Z","price":{"amount":"5","currency":"chaos"}}`))
	require.True(t, ok)
	assert.Equal(t, UnknownName, rec.Name)
	assert.Nil(t, rec.Price, "string amounts are not prices")

	rec, ok = Normalize(decodeEntry(t, `{"item_id":"x","time":"2024-03-05T10:15:00Z","price":{"amount":3,"currency":"  "}}`))
	require.True(t, ok)
	assert.Nil(t, rec.Price, "blank currency drops the amount as well")
}

func TestNormalizeBadItemTextKeepsRecord(t *testing.T) {
	rec, ok := Normalize(decodeEntry(t, `{"item_id":"x","time":"2024-03-05T10:15:00Z","item":{"extended":{"text":"!!not base64!!"}}}`))
	require.True(t, ok)
	assert.Nil(t, rec.ItemText)
	assert.Equal(t, "", rec.Category)
}

func TestRarityLabel(t *testing.T) {
	assert.Equal(t, "Normal", RarityLabel(0))
	assert.Equal(t, "Unique", RarityLabel(3))
	assert.Equal(t, "Quest", RarityLabel(7))
	assert.Equal(t, "", RarityLabel(8))
	assert.Equal(t, "", RarityLabel(-1))
}

func TestCategoryResolutionOrder(t *testing.T) {
	text := base64.StdEncoding.EncodeToString([]byte("Item Class: Body Armours\nRarity: Unique"))

	rec, _ := Normalize(decodeEntry(t, `{"item_id":"x","time":"2024-03-05T10:15:00Z","item":{
		"extended":{"category":"jewellery_ring","text":"`+text+`"},
		"category":{"armour":["chest"]}}}`))
	assert.Equal(t, "Jewellery Ring", rec.Category)

	rec, _ = Normalize(decodeEntry(t, `{"item_id":"x","time":"2024-03-05T10:15:00Z","item":{
		"category":{"weapons":["two-hand_sword"],"armour":[]},"extended":{"text":"`+text+`"}}}`))
	assert.Equal(t, "Weapons: Two Hand Sword", rec.Category)

	rec, _ = Normalize(decodeEntry(t, `{"item_id":"x","time":"2024-03-05T10:15:00Z","item":{"category":{"gems":[]}}}`))
	assert.Equal(t, "Gems", rec.Category)

	rec, _ = Normalize(decodeEntry(t, `{"item_id":"x","time":"2024-03-05T10:15:00Z","item":{"extended":{"text":"`+text+`"}}}`))
	assert.Equal(t, "Body Armours", rec.Category)
}

func TestHumanizeCategory(t *testing.T) {
	assert.Equal(t, "Jewellery Ring", HumanizeCategory("jewellery_ring"))
	assert.Equal(t, "Two Hand Sword", HumanizeCategory(" two--hand__sword "))
	assert.Equal(t, "", HumanizeCategory("  "))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "250", FormatAmount(decimal.NewFromInt(250)))
	assert.Equal(t, "1.5", FormatAmount(decimal.RequireFromString("1.50")))
	assert.Equal(t, "1.67", FormatAmount(decimal.NewFromInt(5).Div(decimal.NewFromInt(3))))
	assert.Equal(t, "0.1", FormatAmount(decimal.RequireFromString("0.104")))
}

func TestDecodeBatch(t *testing.T) {
	entries, skipped, err := DecodeBatch([]byte(`{"result":[{"item_id":"a","time":"2024-03-05T10:15:00Z"},{"item_id":7,"time":5},"junk"]}`))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 2, skipped)

	_, _, err = DecodeBatch([]byte(`{"items":[]}`))
	assert.ErrorIs(t, err, ErrMissingResult)

	_, _, err = DecodeBatch([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeBatchAcceptsNumericItemID(t *testing.T) {
	entries, skipped, err := DecodeBatch([]byte(`{"result":[
		{"item_id":12345,"time":"2024-03-05T10:15:00Z","price":{"amount":2,"currency":"chaos"}},
		{"item_id":true,"time":"2024-03-05T10:16:00Z"}
	]}`))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, entries, 2)
	assert.Equal(t, "12345", entries[0].ItemID)
	assert.Empty(t, entries[1].ItemID)

	rec, ok := Normalize(entries[0])
	require.True(t, ok)
	assert.Equal(t, "12345", rec.ItemID)
	assert.Equal(t, "2", rec.Price.Amount.String())

	_, ok = Normalize(entries[1])
	assert.False(t, ok)
}

func TestParseTimeWithoutZoneUsesLocalTime(t *testing.T) {
	saved := time.Local
	time.Local = time.FixedZone("UTC+3", 3*60*60)
	t.Cleanup(func() { time.Local = saved })

	cases := map[string]time.Time{
		"2024-03-05T10:15:00":       time.Date(2024, 3, 5, 7, 15, 0, 0, time.UTC),
		"2024-03-05T10:15:00.250":   time.Date(2024, 3, 5, 7, 15, 0, 250_000_000, time.UTC),
		"2024-03-05":                time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC),
		"2024-03-05T10:15:00Z":      time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC),
		"2024-03-05T10:15:00+01:00": time.Date(2024, 3, 5, 9, 15, 0, 0, time.UTC),
	}
	for value, want := range cases {
		got, ok := ParseTime(value)
		require.True(t, ok, value)
		assert.True(t, want.Equal(got), "%s: got %s", value, got.UTC())
	}

	_, ok := ParseTime("5 March")
	assert.False(t, ok)
}
