package testutil

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/instatrack/instatrack/internal/models"
)

// TestTariff creates a tariff plan row.
func TestTariff(t *testing.T, db *gorm.DB, opts ...func(*models.TariffPlan)) *models.TariffPlan {
	t.Helper()

	tariff := &models.TariffPlan{
		PaymentAmount:          200,
		AccessDays:             30,
		RequestsBalance:        10,
		TrackingReportInterval: int64((24 * time.Hour).Seconds()),
	}

	for _, opt := range opts {
		opt(tariff)
	}

	if err := db.Create(tariff).Error; err != nil {
		t.Fatalf("Failed to create test tariff: %v", err)
	}

	return tariff
}

// WithAmount sets the tariff price.
func WithAmount(amount int64) func(*models.TariffPlan) {
	return func(p *models.TariffPlan) {
		p.PaymentAmount = amount
	}
}

// WithRequests sets the granted request balance.
func WithRequests(balance int) func(*models.TariffPlan) {
	return func(p *models.TariffPlan) {
		p.RequestsBalance = balance
	}
}

// ForBigAccounts marks the tariff as valid for accounts above the
// popularity threshold.
func ForBigAccounts() func(*models.TariffPlan) {
	return func(p *models.TariffPlan) {
		p.BigAccounts = true
	}
}

// TestSubscription creates a subscription row for the given user and tariff.
// By default the slot is unbound, active for 30 days, and carries the
// tariff's request balance.
func TestSubscription(t *testing.T, db *gorm.DB, userID int64, tariff *models.TariffPlan, opts ...func(*models.Subscription)) *models.Subscription {
	t.Helper()

	sub := &models.Subscription{
		UserTelegramID:    userID,
		TariffID:          tariff.ID,
		ExpireAt:          time.Now().Add(30 * 24 * time.Hour).Unix(),
		RequestsAvailable: tariff.RequestsBalance,
		RenewalEnabled:    true,
		CreatedAt:         time.Now().Unix(),
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Omit("Tariff").Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// BoundTo binds the slot to an account.
func BoundTo(username string) func(*models.Subscription) {
	return func(s *models.Subscription) {
		s.TrackingUsername = &username
	}
}

// Expired makes the subscription inactive.
func Expired() func(*models.Subscription) {
	return func(s *models.Subscription) {
		s.ExpireAt = time.Now().Add(-time.Hour).Unix()
	}
}

// WithBalance overrides the remaining request balance.
func WithBalance(balance int) func(*models.Subscription) {
	return func(s *models.Subscription) {
		s.RequestsAvailable = balance
	}
}

// TestTracking creates a tracking registration.
func TestTracking(t *testing.T, db *gorm.DB, userID int64, username string) *models.Tracking {
	t.Helper()

	tracking := &models.Tracking{
		CreatorTelegramID: userID,
		InstagramUsername: username,
		CreatedAt:         time.Now().Unix(),
	}

	if err := db.Create(tracking).Error; err != nil {
		t.Fatalf("Failed to create test tracking: %v", err)
	}

	return tracking
}
