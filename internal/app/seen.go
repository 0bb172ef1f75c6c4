package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"poe-trade-archive/internal/archive"
	"poe-trade-archive/internal/storage"
)

// MarkSeen marks the given item ids, or every archived sale of the league
// when none are given, as seen.
func (a *App) MarkSeen(ctx context.Context, opts MarkSeenOptions) error {
	slots, closeSlots, err := a.openSlots(ctx)
	if err != nil {
		return err
	}
	defer closeSlots()

	seen, err := archive.LoadSeen(ctx, slots)
	if err != nil {
		return err
	}

	ids := opts.ItemIDs
	if len(ids) == 0 {
		league, err := a.singleLeague(opts.League)
		if err != nil {
			return err
		}
		part, err := a.newArchive(slots).Load(ctx, league)
		if err != nil {
			return err
		}
		// oldest first so the newest ids survive the bound
		for i := len(part.Records) - 1; i >= 0; i-- {
			ids = append(ids, part.Records[i].ItemID)
		}
	}

	added := 0
	for _, id := range ids {
		if seen.Add(id) {
			added++
		}
	}
	if err := archive.SaveSeen(ctx, slots, seen); err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "marked %d new item(s) as seen (%d tracked)\n", added, min(seen.Len(), archive.MaxSeenIDs))
	return nil
}

// Slots lists stored slots when the backend supports enumeration.
func (a *App) Slots(ctx context.Context) error {
	slots, closeSlots, err := a.openSlots(ctx)
	if err != nil {
		return err
	}
	defer closeSlots()

	lister, ok := slots.(storage.SlotLister)
	if !ok {
		return fmt.Errorf("storage backend %q cannot list slots", a.Config.Storage.Backend)
	}
	infos, err := lister.ListSlots(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(a.Out, "no slots stored")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Slot\tBytes\tUpdated (UTC)")
	for _, info := range infos {
		fmt.Fprintf(writer, "%s\t%d\t%s\n", info.Key, info.Bytes, info.UpdatedAt.UTC().Format(time.RFC3339))
	}
	writer.Flush()
	return nil
}
