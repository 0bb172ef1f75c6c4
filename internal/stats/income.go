package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"poe-trade-archive/internal/trade"
)

// Row caps per grouping after sorting.
const (
	DayLimit   = 14
	WeekLimit  = 12
	GroupLimit = 12
)

// OtherLabel collects records without a usable group label.
const OtherLabel = "Other"

// Placeholder is shown when there is nothing to report.
const Placeholder = "—"

// Options select the reporting currency and conversion.
type Options struct {
	PreferredCurrency string
	// Rate enables divine/chaos style conversion; nil disables it.
	Rate *ExchangeRate
	// Location decides calendar days and weeks; defaults to time.Local.
	Location *time.Location
}

// Row is one line of a grouped income table.
type Row struct {
	Label   string
	Count   int
	Amounts []CurrencyAmount
	// Preferred is the converted total, or the native preferred-currency
	// amount when conversion is unavailable.
	Preferred  decimal.Decimal
	Converted  bool
	IncomeText string
}

// DayHighlight is the best or worst day.
type DayHighlight struct {
	Day        string
	Count      int
	Preferred  decimal.Decimal
	IncomeText string
}

// IncomeStats is the full aggregation result.
type IncomeStats struct {
	PreferredCurrency string
	Rate              *ExchangeRate
	Trades            int
	Totals            []CurrencyAmount
	TotalText         string
	// TotalPreferred is nil when the totals cannot be converted.
	TotalPreferred *decimal.Decimal

	ByDay      []Row
	ByWeek     []Row
	ByCategory []Row
	ByBaseType []Row
	ByRarity   []Row

	BestDay  *DayHighlight
	WorstDay *DayHighlight
}

// TotalPreferredText renders the converted total, "" when unavailable.
func (s IncomeStats) TotalPreferredText() string {
	if s.TotalPreferred == nil {
		return ""
	}
	return trade.FormatAmount(*s.TotalPreferred) + " " + s.PreferredCurrency
}

// BestDayText renders the best day or the placeholder.
func (s IncomeStats) BestDayText() string { return s.highlightText(s.BestDay) }

// WorstDayText renders the worst day or the placeholder.
func (s IncomeStats) WorstDayText() string { return s.highlightText(s.WorstDay) }

func (s IncomeStats) highlightText(d *DayHighlight) string {
	if d == nil {
		return Placeholder
	}
	income := d.IncomeText
	if income == "" {
		income = Placeholder
	}
	return fmt.Sprintf("%s: %s %s • %d sold • %s", d.Day, trade.FormatAmount(d.Preferred), s.PreferredCurrency, d.Count, income)
}

type group struct {
	label   string
	count   int
	amounts *Amounts
}

// grouping keeps groups in first-seen order.
type grouping struct {
	groups []*group
	index  map[string]*group
}

func newGrouping() *grouping {
	return &grouping{index: make(map[string]*group)}
}

func (g *grouping) add(label string, price *trade.Price) {
	grp, ok := g.index[label]
	if !ok {
		grp = &group{label: label, amounts: newAmounts()}
		g.index[label] = grp
		g.groups = append(g.groups, grp)
	}
	grp.count++
	grp.amounts.Add(price.Currency, price.Amount)
}

type groupings struct {
	trades   int
	totals   *Amounts
	day      *grouping
	week     *grouping
	category *grouping
	baseType *grouping
	rarity   *grouping
}

func buildGroupings(records []trade.Record, loc *time.Location) groupings {
	g := groupings{
		totals:   newAmounts(),
		day:      newGrouping(),
		week:     newGrouping(),
		category: newGrouping(),
		baseType: newGrouping(),
		rarity:   newGrouping(),
	}
	for _, rec := range records {
		if !rec.Sellable() {
			continue
		}
		g.trades++
		at := rec.Time().In(loc)
		g.totals.Add(rec.Price.Currency, rec.Price.Amount)
		g.day.add(DayKey(at), rec.Price)
		g.week.add(WeekLabel(at), rec.Price)
		g.category.add(orOther(rec.Category), rec.Price)
		g.baseType.add(baseTypeLabel(rec), rec.Price)
		g.rarity.add(orOther(rec.Rarity), rec.Price)
	}
	return g
}

// Compute aggregates sellable records into income tables.
func Compute(records []trade.Record, opts Options) IncomeStats {
	preferred := trade.NormalizeCurrency(opts.PreferredCurrency)
	if preferred == "" {
		preferred = DefaultQuote
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	g := buildGroupings(records, loc)
	result := IncomeStats{
		PreferredCurrency: preferred,
		Rate:              opts.Rate,
		Trades:            g.trades,
		Totals:            g.totals.NonZero(),
		TotalText:         g.totals.String(),
		ByDay:             toRows(g.day, preferred, opts.Rate, byLabelDesc, DayLimit),
		ByWeek:            toRows(g.week, preferred, opts.Rate, byLabelDesc, WeekLimit),
		ByCategory:        toRows(g.category, preferred, opts.Rate, byIncome, GroupLimit),
		ByBaseType:        toRows(g.baseType, preferred, opts.Rate, byIncome, GroupLimit),
		ByRarity:          toRows(g.rarity, preferred, opts.Rate, byIncome, GroupLimit),
	}
	if total, ok := ConvertPair(g.totals, preferred, opts.Rate); ok {
		result.TotalPreferred = &total
	}
	result.BestDay, result.WorstDay = bestWorstDay(g.day, preferred, opts.Rate)
	return result
}

type rowOrder func(a, b Row) bool

func byLabelDesc(a, b Row) bool { return a.Label > b.Label }

func byIncome(a, b Row) bool {
	if !a.Preferred.Equal(b.Preferred) {
		return a.Preferred.GreaterThan(b.Preferred)
	}
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.Label < b.Label
}

func toRows(g *grouping, preferred string, rate *ExchangeRate, less rowOrder, limit int) []Row {
	rows := make([]Row, 0, len(g.groups))
	for _, grp := range g.groups {
		amount, converted := preferredAmount(grp.amounts, preferred, rate)
		rows = append(rows, Row{
			Label:      grp.label,
			Count:      grp.count,
			Amounts:    grp.amounts.NonZero(),
			Preferred:  amount,
			Converted:  converted,
			IncomeText: incomeText(grp.amounts, preferred, rate),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func bestWorstDay(days *grouping, preferred string, rate *ExchangeRate) (*DayHighlight, *DayHighlight) {
	var best, worst *DayHighlight
	for _, grp := range days.groups {
		amount, _ := preferredAmount(grp.amounts, preferred, rate)
		day := &DayHighlight{
			Day:        grp.label,
			Count:      grp.count,
			Preferred:  amount,
			IncomeText: incomeText(grp.amounts, preferred, rate),
		}
		if best == nil || day.Preferred.GreaterThan(best.Preferred) {
			best = day
		}
		if worst == nil || day.Preferred.LessThan(worst.Preferred) {
			worst = day
		}
	}
	return best, worst
}

// DayKey formats a local calendar day as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// WeekStart returns local midnight of the Monday starting t's week.
func WeekStart(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	sinceMonday := (int(midnight.Weekday()) + 6) % 7
	return midnight.AddDate(0, 0, -sinceMonday)
}

// WeekLabel is "Week of YYYY-MM-DD" for the Monday of t's week.
func WeekLabel(t time.Time) string {
	return "Week of " + DayKey(WeekStart(t))
}

func orOther(label string) string {
	if label = strings.TrimSpace(label); label == "" {
		return OtherLabel
	}
	return label
}

func baseTypeLabel(rec trade.Record) string {
	label := strings.TrimSpace(rec.BaseType)
	if label == "" {
		label = strings.TrimSpace(rec.Name)
	}
	if label == "" || label == trade.UnknownName {
		return OtherLabel
	}
	return label
}
