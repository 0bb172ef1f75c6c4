package stats

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"poe-trade-archive/internal/trade"
)

// CurrencyAmount is a summed amount in one currency.
type CurrencyAmount struct {
	Currency string
	Amount   decimal.Decimal
}

// Amounts accumulates per-currency sums in first-seen order.
type Amounts struct {
	entries []CurrencyAmount
	index   map[string]int
}

func newAmounts() *Amounts {
	return &Amounts{index: make(map[string]int)}
}

// Add adds amount to currency. Blank currencies are ignored.
func (a *Amounts) Add(currency string, amount decimal.Decimal) {
	currency = trade.NormalizeCurrency(currency)
	if currency == "" {
		return
	}
	if i, ok := a.index[currency]; ok {
		a.entries[i].Amount = a.entries[i].Amount.Add(amount)
		return
	}
	a.index[currency] = len(a.entries)
	a.entries = append(a.entries, CurrencyAmount{Currency: currency, Amount: amount})
}

// Get returns the sum for currency, zero when absent.
func (a *Amounts) Get(currency string) decimal.Decimal {
	if i, ok := a.index[trade.NormalizeCurrency(currency)]; ok {
		return a.entries[i].Amount
	}
	return decimal.Zero
}

// NonZero returns the non-zero sums, largest first.
func (a *Amounts) NonZero() []CurrencyAmount {
	out := make([]CurrencyAmount, 0, len(a.entries))
	for _, e := range a.entries {
		if !e.Amount.IsZero() {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.GreaterThan(out[j].Amount)
	})
	return out
}

// String renders sums as "100 chaos + 1 divine"; "" when everything is zero.
func (a *Amounts) String() string {
	parts := make([]string, 0, len(a.entries))
	for _, e := range a.NonZero() {
		parts = append(parts, trade.FormatAmount(e.Amount)+" "+e.Currency)
	}
	return strings.Join(parts, " + ")
}
