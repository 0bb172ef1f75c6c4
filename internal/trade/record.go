package trade

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownName is the display name used when an item has neither type line nor base type.
const UnknownName = "(unknown)"

// Price is a sale price. Amount and currency always travel together.
type Price struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Record is the canonical form of one completed sale.
type Record struct {
	TradeKey      string   `json:"tradeKey,omitempty"`
	ItemID        string   `json:"itemId"`
	TimeISO       string   `json:"timeIso"`
	TimeMs        int64    `json:"timeMs"`
	Name          string   `json:"name"`
	BaseType      string   `json:"baseType"`
	Rarity        string   `json:"rarity"`
	Category      string   `json:"category"`
	ItemLevel     *int     `json:"ilvl,omitempty"`
	Price         *Price   `json:"price,omitempty"`
	Note          string   `json:"note,omitempty"`
	Mods          []string `json:"mods,omitempty"`
	FracturedMods []string `json:"fracturedMods,omitempty"`
	ItemText      *string  `json:"itemText,omitempty"`
	Icon          *string  `json:"icon,omitempty"`
}

// Sellable reports whether the record carries a usable price.
func (r Record) Sellable() bool {
	return r.Price != nil && r.Price.Currency != ""
}

// Time returns the sale time.
func (r Record) Time() time.Time {
	return time.UnixMilli(r.TimeMs)
}

// PriceText renders the price as "<amount> <currency>", or "" without a price.
func (r Record) PriceText() string {
	if !r.Sellable() {
		return ""
	}
	return FormatAmount(r.Price.Amount) + " " + r.Price.Currency
}

// IsFractured reports whether mod is one of the record's fractured mods.
func (r Record) IsFractured(mod string) bool {
	for _, m := range r.FracturedMods {
		if m == mod {
			return true
		}
	}
	return false
}

// FormatAmount prints integers without decimals and everything else rounded
// to two places without trailing zeros.
func FormatAmount(d decimal.Decimal) string {
	if d.IsInteger() {
		return d.String()
	}
	return d.Round(2).String()
}
