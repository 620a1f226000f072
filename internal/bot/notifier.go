package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/instatrack/instatrack/internal/models"
)

// The bot implements models.Notifier: payment application and the provider's
// report callback reach the user through here. Delivery failures are logged
// and never fail the calling flow.

func (b *Bot) SubscriptionActivated(ctx context.Context, userTelegramID int64, trackingUsername string) {
	if trackingUsername == "" {
		b.send(ctx, userTelegramID,
			"Payment received. Pick an account to attach your subscription to.",
			b.toAddTrackingKeyboard())
		return
	}
	b.send(ctx, userTelegramID,
		"Payment received",
		b.toTrackingKeyboard(trackingUsername, "Open tracking"))
}

func (b *Bot) RequestsAdded(ctx context.Context, userTelegramID int64, trackingUsername string, balance int) {
	b.send(ctx, userTelegramID,
		fmt.Sprintf("Payment received: %d requests added for @%s", balance, trackingUsername),
		b.toTrackingKeyboard(trackingUsername, "Open tracking"))
}

// ReportReady fetches the finished report and renders it.
func (b *Bot) ReportReady(ctx context.Context, userTelegramID int64, trackingUsername string) {
	stats, err := b.provider.StatsDiff(ctx, trackingUsername, 1)
	if err != nil {
		if soft, ok := models.AsSoftError(err); ok {
			b.send(ctx, userTelegramID, soft.Detail, b.toTrackingKeyboard(trackingUsername, "Open tracking"))
			return
		}
		if errors.Is(err, models.ErrNotFound) {
			return
		}
		b.logger.Error("Failed to fetch report stats: ", err)
		return
	}
	media, err := b.provider.MediaStats(ctx, trackingUsername, 1)
	if err != nil {
		// The report is still useful without the media block.
		media = &models.MediaUserStats{}
	}
	b.send(ctx, userTelegramID,
		"Report for @"+trackingUsername+" is ready\n\n"+statsText(trackingUsername, stats, media),
		b.toTrackingKeyboard(trackingUsername, "Open tracking"))
}
