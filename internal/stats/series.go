package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"poe-trade-archive/internal/trade"
)

// DayPoint is one calendar day of income for charting.
type DayPoint struct {
	Day       time.Time
	Count     int
	Preferred decimal.Decimal
	Converted bool
}

// DailySeries returns every day with sales in ascending order, without the
// row cap applied to the income tables.
func DailySeries(records []trade.Record, opts Options) []DayPoint {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	preferred := trade.NormalizeCurrency(opts.PreferredCurrency)
	if preferred == "" {
		preferred = DefaultQuote
	}

	days := buildGroupings(records, loc).day
	rows := toRows(days, preferred, opts.Rate, func(a, b Row) bool { return a.Label < b.Label }, 0)

	points := make([]DayPoint, 0, len(rows))
	for _, row := range rows {
		day, err := time.ParseInLocation("2006-01-02", row.Label, loc)
		if err != nil {
			continue
		}
		points = append(points, DayPoint{Day: day, Count: row.Count, Preferred: row.Preferred, Converted: row.Converted})
	}
	return points
}
