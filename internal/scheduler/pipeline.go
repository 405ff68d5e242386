package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Adrieleise/upnxt/internal/analytics"
	"github.com/Adrieleise/upnxt/internal/models"
	"github.com/Adrieleise/upnxt/internal/store"
)

// Notifier is told when a reset has finished so connected clients can
// refresh their queues.
type Notifier interface {
	BroadcastReset()
}

// ResetPipeline archives every remaining queue entry, clears the active
// queues, turns doctors away, then rolls the day's numbers into analytics.
// The archive write and the clear happen in one store transaction, so a
// failure part-way leaves the queues intact and the pipeline safe to re-run.
type ResetPipeline struct {
	resets    store.ResetStore
	analytics *analytics.Service
	notifier  Notifier
}

func NewResetPipeline(resets store.ResetStore, svc *analytics.Service, notifier Notifier) *ResetPipeline {
	return &ResetPipeline{resets: resets, analytics: svc, notifier: notifier}
}

func (p *ResetPipeline) RunReset(ctx context.Context, resetAt time.Time) error {
	if _, err := p.resets.ArchiveAndClear(ctx, resetAt); err != nil {
		return fmt.Errorf("archive and clear: %w", err)
	}

	date := resetAt.Format(models.DateFormat)
	if err := p.analytics.CloseDay(ctx, date); err != nil {
		return fmt.Errorf("close day %s: %w", date, err)
	}

	if p.notifier != nil {
		p.notifier.BroadcastReset()
	}
	return nil
}
