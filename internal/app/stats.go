package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"poe-trade-archive/internal/stats"
	"poe-trade-archive/internal/trade"
)

// Stats prints income aggregates for a league's archive.
func (a *App) Stats(ctx context.Context, opts StatsOptions) error {
	league, err := a.singleLeague(opts.League)
	if err != nil {
		return err
	}
	statsOpts, err := a.statsOptions(opts.PreferredCurrency, opts.ExchangeRate)
	if err != nil {
		return err
	}

	slots, closeSlots, err := a.openSlots(ctx)
	if err != nil {
		return err
	}
	defer closeSlots()

	part, err := a.newArchive(slots).Load(ctx, league)
	if err != nil {
		return err
	}

	result := stats.Compute(part.Records, statsOpts)
	a.printStats(league, result)
	return nil
}

func (a *App) printStats(league string, s stats.IncomeStats) {
	fmt.Fprintf(a.Out, "League: %s • Sales: %d\n", league, s.Trades)
	total := s.TotalText
	if total == "" {
		total = stats.Placeholder
	}
	fmt.Fprintf(a.Out, "Income: %s\n", total)
	if text := s.TotalPreferredText(); text != "" {
		fmt.Fprintf(a.Out, "Income (%s): %s\n", s.PreferredCurrency, text)
	}
	if s.Rate != nil {
		fmt.Fprintf(a.Out, "Rate: 1 %s = %s %s\n", s.Rate.Base, trade.FormatAmount(s.Rate.Rate), s.Rate.Quote)
	}
	fmt.Fprintf(a.Out, "Best day: %s\n", s.BestDayText())
	fmt.Fprintf(a.Out, "Worst day: %s\n", s.WorstDayText())

	a.printRows("By day", s.ByDay)
	a.printRows("By week", s.ByWeek)
	a.printRows("By category", s.ByCategory)
	a.printRows("By base type", s.ByBaseType)
	a.printRows("By rarity", s.ByRarity)
}

func (a *App) printRows(title string, rows []stats.Row) {
	fmt.Fprintf(a.Out, "\n%s\n", title)
	if len(rows) == 0 {
		fmt.Fprintln(a.Out, stats.Placeholder)
		return
	}
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		income := row.IncomeText
		if income == "" {
			income = stats.Placeholder
		}
		fmt.Fprintf(writer, "%s\t%d sold\t%s\n", row.Label, row.Count, income)
	}
	writer.Flush()
}
