package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"poe-trade-archive/internal/archive"
	"poe-trade-archive/internal/trade"
)

// Show prints the newest archived sales of a league.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	league, err := a.singleLeague(opts.League)
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
	seen, err := archive.LoadSeen(ctx, slots)
	if err != nil {
		return err
	}

	query := strings.ToLower(strings.TrimSpace(opts.Filter))
	newCount := 0
	rows := make([]trade.Record, 0, len(part.Records))
	for _, rec := range part.Records {
		isNew := !seen.Has(rec.ItemID)
		if isNew {
			newCount++
		}
		if opts.OnlyNew && !isNew {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(haystack(rec)), query) {
			continue
		}
		rows = append(rows, rec)
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}

	a.printHeader(league, part, len(rows), newCount)
	if len(rows) == 0 {
		fmt.Fprintln(a.Out, "no sales found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "\tTime (UTC)\tItem\tDetails\tiLvl\tPrice\tNote")
	for _, rec := range rows {
		marker := ""
		if !seen.Has(rec.ItemID) {
			marker = "*"
		}
		ilvl := ""
		if rec.ItemLevel != nil {
			ilvl = fmt.Sprint(*rec.ItemLevel)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			marker,
			rec.Time().UTC().Format(time.RFC3339),
			sanitizeInline(rec.Name),
			sanitizeInline(details(rec)),
			ilvl,
			rec.PriceText(),
			sanitizeInline(rec.Note),
		)
	}
	writer.Flush()
	return nil
}

func (a *App) printHeader(league string, part archive.Partition, showing, newCount int) {
	header := fmt.Sprintf("League: %s • Showing: %d", league, showing)
	if newCount > 0 {
		header += fmt.Sprintf(" • %d new", newCount)
	}
	header += fmt.Sprintf(" • Archived: %d", len(part.Records))
	if part.Meta.LastFetchAtMs > 0 {
		header += " • Updated: " + time.UnixMilli(part.Meta.LastFetchAtMs).UTC().Format(time.RFC3339)
	}
	fmt.Fprintln(a.Out, header)
	if part.Meta.GapCount > 0 && part.Meta.LastGapFromMs != nil && part.Meta.LastGapToMs != nil {
		fmt.Fprintf(a.Out, "Gaps detected: %d • last between %s and %s\n",
			part.Meta.GapCount,
			time.UnixMilli(*part.Meta.LastGapFromMs).UTC().Format(time.RFC3339),
			time.UnixMilli(*part.Meta.LastGapToMs).UTC().Format(time.RFC3339))
	}
}

func (a *App) singleLeague(league string) (string, error) {
	if league = strings.TrimSpace(league); league != "" {
		return league, nil
	}
	leagues := a.Config.ResolveLeagues(nil)
	if len(leagues) == 0 {
		return "", errors.New("no league given; pass --league or set feed.leagues")
	}
	return leagues[0], nil
}

func details(rec trade.Record) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{rec.Rarity, rec.Category, rec.BaseType} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " • ")
}

func haystack(rec trade.Record) string {
	fields := []string{rec.Name, rec.BaseType, rec.Rarity, rec.Category, rec.Note, rec.PriceText()}
	fields = append(fields, rec.Mods...)
	return strings.Join(fields, " • ")
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
