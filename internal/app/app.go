package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"poe-trade-archive/internal/alerting"
	"poe-trade-archive/internal/archive"
	"poe-trade-archive/internal/config"
	"poe-trade-archive/internal/fetcher"
	"poe-trade-archive/internal/scheduler"
	"poe-trade-archive/internal/service"
	"poe-trade-archive/internal/stats"
	"poe-trade-archive/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives command reports; logs go to the configured log output.
	Out io.Writer

	// history overrides the HTTP fetcher in tests.
	history fetcher.HistoryFetcher
	// slots overrides backend selection in tests.
	slots storage.SlotStore
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newHistory() fetcher.HistoryFetcher {
	if a.history != nil {
		return a.history
	}
	feed := a.Config.Feed
	return fetcher.NewHistory(fetcher.HistoryOptions{
		BaseURL:   feed.BaseURL,
		SessionID: feed.SessionID,
		Timeout:   feed.RequestTimeout,
		UserAgent: feed.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// openSlots selects the configured storage backend. The returned closer is never nil.
func (a *App) openSlots(ctx context.Context) (storage.SlotStore, func(), error) {
	noop := func() {}
	if a.slots != nil {
		return a.slots, noop, nil
	}

	maxBytes := a.Config.Storage.MaxPayloadBytes
	switch a.Config.Storage.Backend {
	case config.BackendPostgres:
		if a.Config.Database.DSN == "" {
			return nil, noop, storage.ErrNotConfigured
		}
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, noop, err
		}
		store := storage.NewStore(pool, maxBytes)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, noop, err
		}
		return store, store.Close, nil
	case config.BackendFile:
		store, err := storage.NewFileStore(a.Config.Storage.Dir, maxBytes)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case config.BackendMemory:
		a.Logger.Warn().Msg("memory storage selected; archive is discarded on exit")
		return storage.NewMemoryStore(maxBytes), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", a.Config.Storage.Backend)
	}
}

func (a *App) newArchive(slots storage.SlotStore) *archive.Archive {
	return archive.New(slots, archive.Options{}, a.Logger)
}

func (a *App) newService(sched *scheduler.Scheduler, slots storage.SlotStore, notifier alerting.Notifier) *service.Service {
	return service.New(a.Config, sched, a.newHistory(), a.newArchive(slots), slots, notifier, a.Logger)
}

func (a *App) statsOptions(preferred string, rateOverride string) (stats.Options, error) {
	cfg := a.Config.Stats
	if preferred != "" {
		cfg.PreferredCurrency = preferred
	}
	if rateOverride != "" {
		cfg.ExchangeRate = rateOverride
	}
	rate, err := cfg.Rate()
	if err != nil {
		return stats.Options{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return stats.Options{}, err
	}
	return stats.Options{
		PreferredCurrency: cfg.PreferredCurrency,
		Rate:              stats.NewPairRate(cfg.RateBase, cfg.RateQuote, rate),
		Location:          loc,
	}, nil
}

// Run executes the long-running archiving service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slots, closeSlots, err := a.openSlots(ctx)
	if err != nil {
		return err
	}
	defer closeSlots()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	notifier := a.newNotifier()
	if a.Config.Alerting.Enabled && notifier == nil {
		a.Logger.Warn().Msg("alerting enabled but no channel configured; gaps are only logged")
	}

	svc := a.newService(sched, slots, notifier)

	a.Logger.Info().Strs("leagues", a.Config.ResolveLeagues(nil)).Msg("starting archiving service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("archiving service stopped")
	return nil
}

// FetchOptions configure a one-off fetch.
type FetchOptions struct {
	Leagues []string
}

// Fetch polls each league once and reports the merge outcome.
func (a *App) Fetch(ctx context.Context, opts FetchOptions) error {
	leagues := a.Config.ResolveLeagues(opts.Leagues)
	if len(leagues) == 0 {
		return errors.New("no leagues configured; pass --league or set feed.leagues")
	}

	slots, closeSlots, err := a.openSlots(ctx)
	if err != nil {
		return err
	}
	defer closeSlots()

	svc := a.newService(nil, slots, a.newNotifier())

	var errs []error
	for _, league := range leagues {
		result, err := svc.ProcessLeague(ctx, league)
		if err != nil {
			errs = append(errs, fmt.Errorf("league %q: %w", league, err))
			continue
		}
		a.printResult(league, result)
	}
	return errors.Join(errs...)
}

func (a *App) printResult(league string, result archive.Result) {
	fmt.Fprintf(a.Out, "%s: %d accepted, %d new, %d rejected, %d archived\n",
		league, result.Accepted, result.Added, result.Rejected, result.Stored)
	if result.Stored < len(result.Records) {
		fmt.Fprintf(a.Out, "  archive truncated to the newest %d records\n", result.Stored)
	}
	if result.Gap.Detected {
		fmt.Fprintf(a.Out, "  possible gap between %s and %s\n",
			result.Gap.From().UTC().Format(time.RFC3339), result.Gap.To().UTC().Format(time.RFC3339))
	}
}

// ExportOptions hold parameters for exporting archived records.
type ExportOptions struct {
	League  string
	From    *time.Time
	To      *time.Time
	PNGPath string
	CSVPath string
	MaxRows int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	League  string
	Limit   int
	OnlyNew bool
	Filter  string
}

// StatsOptions configure the stats command.
type StatsOptions struct {
	League            string
	PreferredCurrency string
	ExchangeRate      string
}

// ImportOptions configure importing saved history responses.
type ImportOptions struct {
	League string
	Paths  []string
	DryRun bool
}

// MarkSeenOptions configure the mark-seen command.
type MarkSeenOptions struct {
	League  string
	ItemIDs []string
}
