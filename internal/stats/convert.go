package stats

import (
	"github.com/shopspring/decimal"

	"poe-trade-archive/internal/trade"
)

// Default currency pair for manual conversion.
const (
	DefaultBase  = "divine"
	DefaultQuote = "chaos"
)

// ExchangeRate is a single manual rate: 1 Base equals Rate units of Quote.
// It is the only conversion supported; there is no general exchange table.
type ExchangeRate struct {
	Base  string
	Quote string
	Rate  decimal.Decimal
}

// NewExchangeRate builds a divine/chaos rate. It returns nil for non-positive rates.
func NewExchangeRate(rate decimal.Decimal) *ExchangeRate {
	return NewPairRate(DefaultBase, DefaultQuote, rate)
}

// NewPairRate builds a rate for an explicit pair. It returns nil for
// non-positive rates or a degenerate pair.
func NewPairRate(base, quote string, rate decimal.Decimal) *ExchangeRate {
	base, quote = trade.NormalizeCurrency(base), trade.NormalizeCurrency(quote)
	if !rate.IsPositive() || base == "" || quote == "" || base == quote {
		return nil
	}
	return &ExchangeRate{Base: base, Quote: quote, Rate: rate}
}

// ConvertPair folds a bucket into the preferred currency. It only succeeds
// when a rate is configured, preferred is one side of the pair and every
// non-zero currency in the bucket belongs to the pair. An empty bucket
// converts to zero.
func ConvertPair(amounts *Amounts, preferred string, rate *ExchangeRate) (decimal.Decimal, bool) {
	if rate == nil || !rate.Rate.IsPositive() {
		return decimal.Zero, false
	}
	preferred = trade.NormalizeCurrency(preferred)
	if preferred != rate.Base && preferred != rate.Quote {
		return decimal.Zero, false
	}

	present := amounts.NonZero()
	if len(present) == 0 {
		return decimal.Zero, true
	}
	for _, e := range present {
		if e.Currency != rate.Base && e.Currency != rate.Quote {
			return decimal.Zero, false
		}
	}

	base := amounts.Get(rate.Base)
	quote := amounts.Get(rate.Quote)
	if preferred == rate.Quote {
		return quote.Add(base.Mul(rate.Rate)), true
	}
	return base.Add(quote.Div(rate.Rate)), true
}

// preferredAmount is the converted total when possible, else the native
// amount of the preferred currency. Used for ranking.
func preferredAmount(amounts *Amounts, preferred string, rate *ExchangeRate) (decimal.Decimal, bool) {
	if converted, ok := ConvertPair(amounts, preferred, rate); ok {
		return converted, true
	}
	return amounts.Get(preferred), false
}

func incomeText(amounts *Amounts, preferred string, rate *ExchangeRate) string {
	if converted, ok := ConvertPair(amounts, preferred, rate); ok {
		return trade.FormatAmount(converted) + " " + trade.NormalizeCurrency(preferred)
	}
	return amounts.String()
}
