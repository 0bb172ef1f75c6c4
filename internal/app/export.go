package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"poe-trade-archive/internal/stats"
	"poe-trade-archive/internal/trade"
)

// Export renders archived sales as CSV and/or a daily income PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	league, err := a.singleLeague(opts.League)
	if err != nil {
		return err
	}
	if opts.From != nil && opts.To != nil && !opts.From.Before(*opts.To) {
		return errors.New("from must be before to")
	}
	opts.MaxRows = a.Config.ResolveMaxRows(opts.MaxRows)

	statsOpts, err := a.statsOptions("", "")
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

	records := selectRecords(part.Records, opts.From, opts.To, opts.MaxRows)
	if len(records) == 0 {
		a.Logger.Info().Str("league", league).Msg("no archived sales found for export window")
		return nil
	}
	a.Logger.Info().Str("league", league).Int("archived", len(part.Records)).Int("exported", len(records)).Msg("exporting sales")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, records); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		points := stats.DailySeries(records, statsOpts)
		if len(points) < 2 {
			a.Logger.Warn().Int("days", len(points)).Msg("chart needs at least two days of sales; skipping png")
			return nil
		}
		if err := writeIncomePNG(opts.PNGPath, points, statsOpts.PreferredCurrency); err != nil {
			return err
		}
	}

	return nil
}

// selectRecords keeps records inside [from, to) and at most max of the newest.
// Input is newest first.
func selectRecords(records []trade.Record, from, to *time.Time, max int) []trade.Record {
	out := make([]trade.Record, 0, len(records))
	for _, rec := range records {
		at := rec.Time()
		if from != nil && at.Before(*from) {
			continue
		}
		if to != nil && !at.Before(*to) {
			continue
		}
		out = append(out, rec)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

func writeRecordsCSV(path string, records []trade.Record) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"time", "item_id", "name", "base_type", "rarity", "category", "ilvl", "amount", "currency", "note", "mods", "trade_key"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		ilvl := ""
		if rec.ItemLevel != nil {
			ilvl = strconv.Itoa(*rec.ItemLevel)
		}
		amount, currency := "", ""
		if rec.Price != nil {
			amount = rec.Price.Amount.String()
			currency = rec.Price.Currency
		}
		row := []string{
			rec.TimeISO,
			rec.ItemID,
			rec.Name,
			rec.BaseType,
			rec.Rarity,
			rec.Category,
			ilvl,
			amount,
			currency,
			rec.Note,
			strings.Join(rec.Mods, " | "),
			rec.TradeKey,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeIncomePNG(path string, points []stats.DayPoint, currency string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	income := make([]float64, len(points))
	sold := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.Day
		income[i] = p.Preferred.InexactFloat64()
		sold[i] = float64(p.Count)
	}

	amountFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	countFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           fmt.Sprintf("Income (%s)", currency),
			ValueFormatter: amountFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Sold",
			ValueFormatter: countFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Income",
				XValues: x,
				YValues: income,
			},
			chart.TimeSeries{
				Name:    "Sold",
				XValues: x,
				YValues: sold,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
