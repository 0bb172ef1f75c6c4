package trade

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	itemClassPattern  = regexp.MustCompile(`(?m)^Item Class:\s*(.+?)\s*$`)
	separatorsPattern = regexp.MustCompile(`[_-]+`)
)

var rarityLabels = map[int]string{
	0: "Normal",
	1: "Magic",
	2: "Rare",
	3: "Unique",
	4: "Gem",
	5: "Currency",
	6: "Divination",
	7: "Quest",
}

// localLayouts carry no zone and are read in the local time zone.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Normalize converts one raw feed entry into a canonical record. It reports
// false when the item id or time is missing or the time cannot be parsed.
func Normalize(entry RawEntry) (Record, bool) {
	if entry.ItemID == "" || entry.Time == "" {
		return Record{}, false
	}
	saleTime, ok := ParseTime(entry.Time)
	if !ok {
		return Record{}, false
	}

	rec := Record{
		ItemID:  entry.ItemID,
		TimeISO: entry.Time,
		TimeMs:  saleTime.UnixMilli(),
		Name:    UnknownName,
		Price:   normalizePrice(entry.Price),
	}

	item := entry.Item
	if item == nil {
		return rec, true
	}

	typeLine, _ := rawString(item.TypeLine)
	baseType, _ := rawString(item.BaseType)
	typeLine = strings.TrimSpace(typeLine)
	rec.BaseType = strings.TrimSpace(baseType)
	switch {
	case typeLine != "":
		rec.Name = typeLine
	case rec.BaseType != "":
		rec.Name = rec.BaseType
	}

	if item.Extended != nil {
		if encoded, ok := rawString(item.Extended.Text); ok {
			if text, ok := DecodeItemText(encoded); ok {
				rec.ItemText = &text
			}
		}
	}

	if frame, ok := rawInt(item.FrameType); ok {
		rec.Rarity = RarityLabel(frame)
	}
	rec.Category = categoryLabel(item, rec.ItemText)
	if ilvl, ok := rawInt(item.ItemLevel); ok {
		rec.ItemLevel = &ilvl
	}
	rec.Note, _ = rawString(item.Note)
	if icon, ok := rawString(item.Icon); ok {
		rec.Icon = &icon
	}

	rec.FracturedMods = nonBlank(rawStrings(item.FracturedMods))
	var mods []string
	mods = append(mods, rawStrings(item.ImplicitMods)...)
	mods = append(mods, rawStrings(item.ExplicitMods)...)
	mods = append(mods, rawStrings(item.UtilityMods)...)
	mods = append(mods, rec.FracturedMods...)
	mods = append(mods, rawStrings(item.CraftedMods)...)
	mods = append(mods, rawStrings(item.EnchantMods)...)
	rec.Mods = nonBlank(mods)

	return rec, true
}

// ParseTime parses an ISO-8601 sale timestamp.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizePrice(raw *RawPrice) *Price {
	if raw == nil {
		return nil
	}
	amountText, ok := rawNumber(raw.Amount)
	if !ok {
		return nil
	}
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return nil
	}
	currency, ok := rawString(raw.Currency)
	if !ok {
		return nil
	}
	currency = NormalizeCurrency(currency)
	if currency == "" {
		return nil
	}
	return &Price{Amount: amount, Currency: currency}
}

// NormalizeCurrency lower-cases and trims a currency code.
func NormalizeCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}

// RarityLabel maps a frame type code to its rarity name.
func RarityLabel(frameType int) string {
	return rarityLabels[frameType]
}

// DecodeItemText decodes the base64 in-game item text and normalizes newlines.
func DecodeItemText(encoded string) (string, bool) {
	encoded = strings.TrimSpace(encoded)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return "", false
		}
	}
	return strings.ReplaceAll(string(decoded), "\r\n", "\n"), true
}

// HumanizeCategory turns tokens like "jewellery_ring" into "Jewellery Ring".
func HumanizeCategory(token string) string {
	cleaned := separatorsPattern.ReplaceAllString(strings.TrimSpace(token), " ")
	words := strings.Fields(cleaned)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func categoryLabel(item *RawItem, itemText *string) string {
	if item.Extended != nil {
		if direct, ok := rawString(item.Extended.Category); ok && strings.TrimSpace(direct) != "" {
			return HumanizeCategory(direct)
		}
	}

	if key, value, ok := firstObjectEntry(item.Category); ok {
		var subs []json.RawMessage
		if err := json.Unmarshal(value, &subs); err == nil && len(subs) > 0 {
			if sub, ok := rawString(subs[0]); ok && sub != "" {
				return HumanizeCategory(key) + ": " + HumanizeCategory(sub)
			}
		}
		return HumanizeCategory(key)
	}

	if itemText != nil && *itemText != "" {
		if m := itemClassPattern.FindStringSubmatch(*itemText); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func nonBlank(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
