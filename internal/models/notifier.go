package models

import "context"

// Notifier tells the conversational layer about events that happen outside
// the chat, such as applied payments. Implementations must not fail the
// calling flow: delivery problems are logged, not returned.
type Notifier interface {
	// SubscriptionActivated announces a created or renewed subscription.
	// trackingUsername is empty for an unbound slot.
	SubscriptionActivated(ctx context.Context, userTelegramID int64, trackingUsername string)
	// RequestsAdded announces a request balance top-up.
	RequestsAdded(ctx context.Context, userTelegramID int64, trackingUsername string, balance int)
	// ReportReady announces that the provider finished collecting a report.
	ReportReady(ctx context.Context, userTelegramID int64, trackingUsername string)
}
