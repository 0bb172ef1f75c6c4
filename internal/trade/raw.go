package trade

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMissingResult indicates a history payload without a result array.
var ErrMissingResult = errors.New("history payload missing result array")

// RawEntry is one untrusted entry of the trade history feed.
type RawEntry struct {
	ItemID string    `json:"item_id"`
	Time   string    `json:"time"`
	Item   *RawItem  `json:"item"`
	Price  *RawPrice `json:"price"`
}

// UnmarshalJSON accepts a numeric item_id as its text form. Any other
// non-string id decodes as empty.
func (e *RawEntry) UnmarshalJSON(data []byte) error {
	type plain RawEntry
	aux := struct {
		*plain
		ItemID json.RawMessage `json:"item_id"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.ItemID = ""
	if id, ok := rawString(aux.ItemID); ok {
		e.ItemID = id
	} else if id, ok := rawNumber(aux.ItemID); ok {
		e.ItemID = id
	}
	return nil
}

// RawItem mirrors the nested item description. Loosely typed fields stay raw
// so a single odd value does not reject the whole entry.
type RawItem struct {
	TypeLine      json.RawMessage   `json:"typeLine"`
	BaseType      json.RawMessage   `json:"baseType"`
	FrameType     json.RawMessage   `json:"frameType"`
	ItemLevel     json.RawMessage   `json:"ilvl"`
	Note          json.RawMessage   `json:"note"`
	Icon          json.RawMessage   `json:"icon"`
	Category      json.RawMessage   `json:"category"`
	ImplicitMods  []json.RawMessage `json:"implicitMods"`
	ExplicitMods  []json.RawMessage `json:"explicitMods"`
	UtilityMods   []json.RawMessage `json:"utilityMods"`
	FracturedMods []json.RawMessage `json:"fracturedMods"`
	CraftedMods   []json.RawMessage `json:"craftedMods"`
	EnchantMods   []json.RawMessage `json:"enchantMods"`
	Extended      *RawExtended      `json:"extended"`
}

// RawExtended carries the base64 item text and the explicit category token.
type RawExtended struct {
	Text     json.RawMessage `json:"text"`
	Category json.RawMessage `json:"category"`
}

// RawPrice is the listed sale price.
type RawPrice struct {
	Amount   json.RawMessage `json:"amount"`
	Currency json.RawMessage `json:"currency"`
}

// DecodeBatch parses a history response envelope. Entries that cannot be
// decoded are skipped and counted in the second return value.
func DecodeBatch(payload []byte) ([]RawEntry, int, error) {
	var envelope struct {
		Result []json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, 0, fmt.Errorf("decode history payload: %w", err)
	}
	if envelope.Result == nil {
		return nil, 0, ErrMissingResult
	}

	entries := make([]RawEntry, 0, len(envelope.Result))
	skipped := 0
	for _, raw := range envelope.Result {
		var entry RawEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}
	return entries, skipped, nil
}

func rawString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func rawNumber(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	if c := raw[0]; c != '-' && (c < '0' || c > '9') {
		return "", false
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
		return "", false
	}
	return string(raw), true
}

func rawInt(raw json.RawMessage) (int, bool) {
	text, ok := rawNumber(raw)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func rawStrings(values []json.RawMessage) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := rawString(v); ok {
			out = append(out, s)
		}
	}
	return out
}

// firstObjectEntry returns the first key of a JSON object in document order
// together with its value.
func firstObjectEntry(raw json.RawMessage) (string, json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return "", nil, false
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", nil, false
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", nil, false
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return "", nil, false
		}
		if key == "" {
			continue
		}
		return key, value, true
	}
	return "", nil, false
}
