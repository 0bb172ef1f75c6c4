package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"poe-trade-archive/internal/trade"
)

// Import merges saved history responses into the archive, oldest file first.
func (a *App) Import(ctx context.Context, opts ImportOptions) error {
	if len(opts.Paths) == 0 {
		return errors.New("至少需要一个导入文件")
	}
	league, err := a.singleLeague(opts.League)
	if err != nil {
		return err
	}

	batches := make([][]trade.RawEntry, 0, len(opts.Paths))
	for _, path := range opts.Paths {
		payload, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		entries, skipped, err := trade.DecodeBatch(payload)
		if err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		if skipped > 0 {
			a.Logger.Warn().Str("file", path).Int("skipped", skipped).Msg("skipped undecodable entries")
		}
		batches = append(batches, entries)
	}

	if opts.DryRun {
		a.Logger.Warn().Msg("导入 dry-run：不会写入存储")
		for i, entries := range batches {
			batch := trade.NormalizeBatch(league, entries)
			fmt.Fprintf(a.Out, "%s: %d accepted, %d rejected, %d duplicates\n",
				opts.Paths[i], len(batch.Records), batch.Rejected, batch.Duplicates)
		}
		return nil
	}

	slots, closeSlots, err := a.openSlots(ctx)
	if err != nil {
		return err
	}
	defer closeSlots()

	svc := a.newService(nil, slots, nil)

	processed := 0
	for i, entries := range batches {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := svc.Ingest(ctx, league, entries)
		if err != nil {
			return fmt.Errorf("import %s: %w", opts.Paths[i], err)
		}
		a.printResult(opts.Paths[i], result)
		processed++
	}

	a.Logger.Info().Str("league", league).Int("files", processed).Msg("导入完成")
	return nil
}
