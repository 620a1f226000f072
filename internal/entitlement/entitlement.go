// Package entitlement decides, for a (user, tracked account) pair, whether a
// requested view or action is permitted and what it costs. Decisions are
// recomputed per request from the subscription ledger, the tracking registry
// and the provider's account metadata; there is no persistent state machine.
package entitlement

import (
	"context"
	"errors"

	"github.com/instatrack/instatrack/internal/catalog"
	"github.com/instatrack/instatrack/internal/models"
	"github.com/instatrack/instatrack/pkg/logger"
)

type Service struct {
	logger *logger.Logger

	repo     models.Repository
	catalog  *catalog.Catalog
	provider models.StatsProvider
}

func NewService(repo models.Repository, catalog *catalog.Catalog, provider models.StatsProvider, logger *logger.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, provider: provider, logger: logger}
}

// paywall builds a decision that needs the tariff list attached so the
// rendering layer can offer plans immediately.
func (s *Service) paywall(state models.DecisionState, username string) (*models.Decision, error) {
	tariffs, err := s.catalog.List()
	if err != nil {
		return nil, err
	}
	return &models.Decision{State: state, Username: username, Tariffs: tariffs}, nil
}

// Decide computes the entitlement state for the pair without mutating
// anything. Claim performs the same resolution and actually binds.
func (s *Service) Decide(ctx context.Context, userTelegramID int64, username string) (*models.Decision, error) {
	subs, err := s.repo.ActiveSubscriptions(userTelegramID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return s.paywall(models.DecisionNoActiveSubscription, username)
	}

	sub, err := s.repo.FindUnboundOrMatching(userTelegramID, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.paywall(models.DecisionNoFreeSlot, username)
		}
		return nil, err
	}
	if sub.BoundTo(username) {
		return &models.Decision{State: models.DecisionBoundAccess, Username: username, Subscription: sub}, nil
	}

	eligible, err := s.accountEligible(ctx, sub, username)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return s.paywall(models.DecisionAccountIneligible, username)
	}
	return &models.Decision{State: models.DecisionClaimGranted, Username: username, Subscription: sub}, nil
}

// accountEligible checks the popularity threshold against the slot's tariff.
// Accounts above the threshold need a big-accounts plan.
func (s *Service) accountEligible(ctx context.Context, sub *models.Subscription, username string) (bool, error) {
	info, err := s.provider.GetProfile(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, err
		}
		return false, err
	}
	if info.IsBig() && !sub.Tariff.BigAccounts {
		return false, nil
	}
	return true, nil
}

// Claim binds an unbound slot to the account, or confirms existing access.
// Exactly one unbound subscription is bound per claim; the bind itself is an
// atomic conditional update, so a concurrent claim for the same slot loses
// and observes NoFreeSlot.
func (s *Service) Claim(ctx context.Context, userTelegramID int64, username string) (*models.Decision, error) {
	subs, err := s.repo.ActiveSubscriptions(userTelegramID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return s.paywall(models.DecisionNoActiveSubscription, username)
	}

	sub, err := s.repo.FindUnboundOrMatching(userTelegramID, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.paywall(models.DecisionNoFreeSlot, username)
		}
		return nil, err
	}

	if sub.BoundTo(username) {
		// Already claimed; make sure the tracking row exists and move on.
		if err := s.ensureTracking(userTelegramID, username); err != nil {
			return nil, err
		}
		return &models.Decision{State: models.DecisionBoundAccess, Username: username, Subscription: sub}, nil
	}

	eligible, err := s.accountEligible(ctx, sub, username)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return s.paywall(models.DecisionAccountIneligible, username)
	}

	bound, err := s.repo.BindSubscription(sub.ID, username)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Lost a claim race for this slot.
			s.logger.Warn("Claim race lost ", "subscription ", sub.ID, "username ", username)
			return s.paywall(models.DecisionNoFreeSlot, username)
		}
		return nil, err
	}
	if err := s.ensureTracking(userTelegramID, username); err != nil {
		return nil, err
	}

	s.logger.Info("Slot claimed ", "subscription ", bound.ID, "username ", username)
	return &models.Decision{State: models.DecisionClaimGranted, Username: username, Subscription: bound}, nil
}

// ensureTracking creates the tracking row, tolerating one that already exists.
func (s *Service) ensureTracking(userTelegramID int64, username string) error {
	err := s.repo.CreateTracking(&models.Tracking{
		CreatorTelegramID: userTelegramID,
		InstagramUsername: username,
	})
	if err != nil && !errors.Is(err, models.ErrConflict) {
		return err
	}
	return nil
}

// CollectData performs the quota-consuming on-demand refresh. A refresh whose
// diff is flat does not consume quota: the user is told nothing changed
// instead of being charged for a no-op.
func (s *Service) CollectData(ctx context.Context, userTelegramID int64, username string) (*models.CollectResult, error) {
	sub, err := s.repo.FindBoundSubscription(userTelegramID, username)
	if err != nil {
		return nil, err
	}
	if sub.RequestsAvailable <= 0 {
		return &models.CollectResult{
			Outcome:  models.CollectQuotaExhausted,
			Username: username,
		}, nil
	}

	diff, err := s.provider.StatsDiff(ctx, username, 1)
	if err != nil {
		if soft, ok := models.AsSoftError(err); ok {
			return &models.CollectResult{
				Outcome:      models.CollectSoftFailure,
				Username:     username,
				RequestsLeft: sub.RequestsAvailable,
				Detail:       soft.Detail,
			}, nil
		}
		return nil, err
	}
	if diff.Unchanged() {
		return &models.CollectResult{
			Outcome:      models.CollectNoChange,
			Username:     username,
			RequestsLeft: sub.RequestsAvailable,
		}, nil
	}

	if err := s.provider.CreateReport(ctx, userTelegramID, username); err != nil {
		return nil, err
	}
	updated, err := s.repo.ConsumeRequest(sub.ID)
	if err != nil {
		if errors.Is(err, models.ErrQuotaExhausted) {
			// Someone emptied the balance between the check and the decrement.
			return &models.CollectResult{Outcome: models.CollectQuotaExhausted, Username: username}, nil
		}
		return nil, err
	}
	return &models.CollectResult{
		Outcome:      models.CollectStarted,
		Username:     username,
		RequestsLeft: updated.RequestsAvailable,
	}, nil
}

// Untrack removes the tracking registration. The subscription stays bound to
// the account name: within one paid period a slot is never freed for a
// different account, only replaced by a new purchase.
func (s *Service) Untrack(ctx context.Context, userTelegramID int64, username string) error {
	return s.repo.DeleteTracking(userTelegramID, username)
}

// Trackings lists the user's registrations.
func (s *Service) Trackings(userTelegramID int64) ([]*models.Tracking, error) {
	return s.repo.ListTrackings(userTelegramID)
}

// ActiveSubscriptions returns the user's unexpired subscriptions with tariffs.
func (s *Service) ActiveSubscriptions(userTelegramID int64) ([]*models.Subscription, error) {
	return s.repo.ActiveSubscriptions(userTelegramID)
}

// Tariffs exposes the plan catalog for paywall rendering.
func (s *Service) Tariffs() ([]*models.TariffPlan, error) {
	return s.catalog.List()
}
