package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"poe-trade-archive/internal/alerting"
	"poe-trade-archive/internal/archive"
	"poe-trade-archive/internal/config"
	"poe-trade-archive/internal/fetcher"
	"poe-trade-archive/internal/scheduler"
	"poe-trade-archive/internal/storage"
	"poe-trade-archive/internal/trade"
)

// ErrLocked is returned when another process holds the partition lock.
var ErrLocked = errors.New("partition locked by another process")

// Service orchestrates fetching, archiving, and gap alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	history   fetcher.HistoryFetcher
	archive   *archive.Archive
	notifier  alerting.Notifier
	logger    zerolog.Logger

	leagues  []string
	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64
	now      func() time.Time

	mu         sync.Mutex
	partitions map[string]*sync.Mutex
}

// New constructs the archiving service. slots is inspected for advisory lock
// support; a nil notifier disables alerts.
func New(cfg *config.Config, sched *scheduler.Scheduler, history fetcher.HistoryFetcher, arch *archive.Archive, slots storage.SlotStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := slots.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		history:    history,
		archive:    arch,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		leagues:    cfg.ResolveLeagues(nil),
		alertsOn:   cfg.Alerting.Enabled,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
		now:        time.Now,
		partitions: make(map[string]*sync.Mutex),
	}
}

// Run begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if len(s.leagues) == 0 {
		return fmt.Errorf("no leagues configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick 对每个联赛执行一次抓取与归档。
func (s *Service) ProcessTick(ctx context.Context, at time.Time) error {
	var errs []error
	for _, league := range s.leagues {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := s.ProcessLeague(ctx, league); err != nil {
			if errors.Is(err, ErrLocked) {
				s.logger.Debug().Str("league", league).Time("at", at).Msg("skip league because advisory lock held elsewhere")
				continue
			}
			errs = append(errs, fmt.Errorf("league %q: %w", league, err))
		}
	}
	return errors.Join(errs...)
}

// ProcessLeague fetches the latest history page of league and merges it.
func (s *Service) ProcessLeague(ctx context.Context, league string) (archive.Result, error) {
	if s.history == nil {
		return archive.Result{}, fmt.Errorf("history fetcher not configured")
	}
	return s.withPartition(ctx, league, func() (archive.Result, error) {
		batch, err := s.history.FetchHistory(ctx, league)
		if err != nil {
			return archive.Result{}, fmt.Errorf("fetch history: %w", err)
		}
		return s.ingest(ctx, league, batch.Entries)
	})
}

// Ingest merges an externally obtained batch, such as a saved response file.
func (s *Service) Ingest(ctx context.Context, league string, entries []trade.RawEntry) (archive.Result, error) {
	return s.withPartition(ctx, league, func() (archive.Result, error) {
		return s.ingest(ctx, league, entries)
	})
}

func (s *Service) ingest(ctx context.Context, league string, entries []trade.RawEntry) (archive.Result, error) {
	result, err := s.archive.PersistBatch(ctx, league, entries)
	if err != nil {
		return archive.Result{}, fmt.Errorf("persist batch: %w", err)
	}

	s.logger.Info().Str("league", league).
		Str("fetch_id", result.FetchID).
		Int("accepted", result.Accepted).
		Int("added", result.Added).
		Int("rejected", result.Rejected).
		Msg("league archived")

	if result.Gap.Detected {
		s.notifyGap(ctx, league, result)
	}
	return result, nil
}

func (s *Service) notifyGap(ctx context.Context, league string, result archive.Result) {
	if !s.alertsOn || s.notifier == nil {
		return
	}
	note := alerting.Notification{
		League:     league,
		GapFrom:    result.Gap.From(),
		GapTo:      result.Gap.To(),
		GapCount:   result.Meta.GapCount,
		BatchSize:  result.Accepted,
		FetchID:    result.FetchID,
		DetectedAt: s.now(),
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("league", league).Msg("failed to dispatch gap alert")
	}
}

// withPartition serializes work on one partition within the process and,
// when the store supports it, across processes.
func (s *Service) withPartition(ctx context.Context, league string, fn func() (archive.Result, error)) (archive.Result, error) {
	partition := trade.NormalizePartition(league)

	local := s.partitionMutex(partition)
	local.Lock()
	defer local.Unlock()

	unlock, proceed, err := s.acquireLock(ctx, partition)
	if err != nil {
		return archive.Result{}, err
	}
	if !proceed {
		return archive.Result{}, ErrLocked
	}
	if unlock != nil {
		defer unlock()
	}
	return fn()
}

func (s *Service) partitionMutex(partition string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.partitions[partition]
	if !ok {
		m = &sync.Mutex{}
		s.partitions[partition] = m
	}
	return m
}

func (s *Service) acquireLock(ctx context.Context, partition string) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, PartitionLockKey(s.lockKey, partition))
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// PartitionLockKey derives a per-partition advisory lock key from the base key.
func PartitionLockKey(base int64, partition string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(trade.NormalizePartition(partition)))
	return base<<32 ^ int64(h.Sum32())
}
