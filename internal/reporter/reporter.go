// Package reporter drives the periodic report dispatch. It is a plain
// scheduled loop over the core's read operations: which accounts get a
// report, and how often, is decided entirely by the subscription ledger and
// the tariff's report interval.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/instatrack/instatrack/internal/models"
	"github.com/instatrack/instatrack/pkg/logger"
)

// tick is how often pending report intervals are re-checked.
const tick = 10 * time.Minute

type Reporter struct {
	logger *logger.Logger

	repo     models.Repository
	notifier models.Notifier

	// lastSent remembers per tracking when the previous report went out.
	// Kept in memory: a restart just re-sends at most one report early.
	lastSent map[string]time.Time
}

func New(repo models.Repository, notifier models.Notifier, logger *logger.Logger) *Reporter {
	return &Reporter{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		lastSent: make(map[string]time.Time),
	}
}

// Run loops until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.logger.Debug("Checking report intervals")
			if err := r.dispatchDue(ctx); err != nil {
				r.logger.Error("Failed to dispatch reports", "error", err)
			}
		}
	}
}

// dispatchDue sends a report for every tracking whose owner holds an active
// bound subscription and whose tariff interval has elapsed.
func (r *Reporter) dispatchDue(ctx context.Context) error {
	trackings, err := r.repo.ListAllTrackings()
	if err != nil {
		return err
	}
	now := time.Now()
	for _, tracking := range trackings {
		sub, err := r.repo.FindBoundSubscription(tracking.CreatorTelegramID, tracking.InstagramUsername)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return err
		}
		interval := time.Duration(sub.Tariff.TrackingReportInterval) * time.Second
		if interval <= 0 {
			continue
		}
		key := fmt.Sprintf("%d/%s", tracking.CreatorTelegramID, tracking.InstagramUsername)
		if last, ok := r.lastSent[key]; ok && now.Sub(last) < interval {
			continue
		}
		r.lastSent[key] = now
		r.notifier.ReportReady(ctx, tracking.CreatorTelegramID, tracking.InstagramUsername)
	}
	return nil
}
