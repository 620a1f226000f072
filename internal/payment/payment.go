// Package payment applies verified payment events to the subscription
// ledger. Application is idempotent per gateway transaction id and runs in a
// single repository transaction: a rejected event leaves no partial state.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/instatrack/instatrack/internal/catalog"
	"github.com/instatrack/instatrack/internal/models"
	"github.com/instatrack/instatrack/pkg/logger"
)

type Service struct {
	logger *logger.Logger

	repo     models.Repository
	catalog  *catalog.Catalog
	notifier models.Notifier
}

func NewService(repo models.Repository, catalog *catalog.Catalog, notifier models.Notifier, logger *logger.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, notifier: notifier, logger: logger}
}

// Tariffs exposes the plan catalog for the paywall surface.
func (s *Service) Tariffs() ([]*models.TariffPlan, error) {
	return s.catalog.List()
}

// Apply validates and applies one payment event. A re-delivered event with a
// known transaction id is a successful no-op so gateway retries stay safe.
func (s *Service) Apply(ctx context.Context, event *models.PaymentEvent) error {
	tariff, err := s.catalog.Get(event.TariffID)
	if err != nil {
		return err
	}
	if event.Amount != tariff.PaymentAmount {
		s.logger.Warn("Payment amount mismatch ",
			"transaction ", event.TransactionID,
			"amount ", event.Amount,
			"expected ", tariff.PaymentAmount)
		return fmt.Errorf("transaction %d paid %d, tariff %d costs %d: %w",
			event.TransactionID, event.Amount, tariff.ID, tariff.PaymentAmount, models.ErrAmountMismatch)
	}

	if _, err := s.repo.PaymentByTransactionID(event.TransactionID); err == nil {
		s.logger.Info("Duplicate payment event ignored ", "transaction ", event.TransactionID)
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	err = s.repo.WithTx(func(tx models.Repository) error {
		switch event.Product {
		case models.ProductSubscription:
			return s.applySubscription(tx, event, tariff)
		case models.ProductRequests:
			return s.applyRequests(tx, event, tariff)
		default:
			return fmt.Errorf("unknown payment product %q: %w", event.Product, models.ErrNotFound)
		}
	})
	if err != nil {
		return err
	}

	s.notify(ctx, event, tariff)
	return nil
}

// applySubscription creates a subscription, or renews the one already bound
// to the target account instead of duplicating it.
func (s *Service) applySubscription(tx models.Repository, event *models.PaymentEvent, tariff *models.TariffPlan) error {
	expireAt := time.Now().AddDate(0, 0, tariff.AccessDays).Unix()

	if event.TrackingUsername != "" {
		existing, err := tx.FindBoundSubscription(event.UserTelegramID, event.TrackingUsername)
		if err == nil {
			if _, err := tx.RenewSubscription(existing.ID, tariff.ID, expireAt, tariff.RequestsBalance); err != nil {
				return err
			}
			s.logger.Info("Subscription renewed ",
				"subscription ", existing.ID,
				"tariff ", tariff.ID,
				"username ", event.TrackingUsername)
			return s.recordPayment(tx, event)
		}
		if !errors.Is(err, models.ErrNotFound) {
			return err
		}
	}

	sub := &models.Subscription{
		UserTelegramID:    event.UserTelegramID,
		TariffID:          tariff.ID,
		ExpireAt:          expireAt,
		RequestsAvailable: tariff.RequestsBalance,
		RenewalEnabled:    true,
	}
	if event.TrackingUsername != "" {
		username := event.TrackingUsername
		sub.TrackingUsername = &username
	}
	if event.GatewaySubscriptionID != "" {
		gatewayID := event.GatewaySubscriptionID
		sub.GatewaySubscriptionID = &gatewayID
	}
	if err := tx.CreateSubscription(sub); err != nil {
		return err
	}
	if event.TrackingUsername != "" {
		err := tx.CreateTracking(&models.Tracking{
			CreatorTelegramID: event.UserTelegramID,
			InstagramUsername: event.TrackingUsername,
		})
		if err != nil && !errors.Is(err, models.ErrConflict) {
			return err
		}
	}
	s.logger.Info("Subscription created ",
		"subscription ", sub.ID,
		"tariff ", tariff.ID,
		"username ", event.TrackingUsername)
	return s.recordPayment(tx, event)
}

// applyRequests tops up a subscription's request balance. Quota cannot be
// bought for an account without a subscription.
func (s *Service) applyRequests(tx models.Repository, event *models.PaymentEvent, tariff *models.TariffPlan) error {
	sub, err := tx.FindBoundSubscription(event.UserTelegramID, event.TrackingUsername)
	if err != nil {
		return err
	}
	updated, err := tx.TopUpRequests(sub.ID, tariff.RequestsBalance)
	if err != nil {
		return err
	}
	s.logger.Info("Request balance topped up ",
		"subscription ", sub.ID,
		"added ", tariff.RequestsBalance,
		"balance ", updated.RequestsAvailable)
	return s.recordPayment(tx, event)
}

func (s *Service) recordPayment(tx models.Repository, event *models.PaymentEvent) error {
	record := &models.PaymentRecord{
		UserTelegramID: event.UserTelegramID,
		TransactionID:  event.TransactionID,
		Product:        event.Product,
		Amount:         event.Amount,
	}
	if event.GatewaySubscriptionID != "" {
		gatewayID := event.GatewaySubscriptionID
		record.GatewaySubscriptionID = &gatewayID
	}
	return tx.CreatePayment(record)
}

func (s *Service) notify(ctx context.Context, event *models.PaymentEvent, tariff *models.TariffPlan) {
	if s.notifier == nil {
		return
	}
	switch event.Product {
	case models.ProductSubscription:
		s.notifier.SubscriptionActivated(ctx, event.UserTelegramID, event.TrackingUsername)
	case models.ProductRequests:
		s.notifier.RequestsAdded(ctx, event.UserTelegramID, event.TrackingUsername, tariff.RequestsBalance)
	}
}
