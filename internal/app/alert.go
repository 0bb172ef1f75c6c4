package app

import (
	"context"
	"errors"
	"time"

	"poe-trade-archive/internal/alerting"
)

// SimulateGap 发送一条模拟断档告警，用于验证告警通道配置。
func (a *App) SimulateGap(ctx context.Context, league string, span time.Duration) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	league, err := a.singleLeague(league)
	if err != nil {
		return err
	}
	if span <= 0 {
		span = time.Hour
	}

	now := time.Now().UTC()
	return notifier.Notify(ctx, alerting.Notification{
		League:        league,
		GapFrom:       now.Add(-span),
		GapTo:         now,
		GapCount:      1,
		DetectedAt:    now,
		FetchID:       "simulated",
		AdditionalMsg: "This is a test alert.",
	})
}
