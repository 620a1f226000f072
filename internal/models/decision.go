package models

// DecisionState classifies an entitlement decision for a (user, account) pair.
type DecisionState int

const (
	// DecisionNoActiveSubscription: the user has no active subscription at all.
	// The rendering layer shows the paywall.
	DecisionNoActiveSubscription DecisionState = iota
	// DecisionAccountIneligible: the target account is big and the user has no
	// slot already bound to it. Claiming requires the dedicated big-account tariff.
	DecisionAccountIneligible
	// DecisionNoFreeSlot: active subscriptions exist, but none is unbound and
	// none matches the target. The user must buy an additional slot.
	DecisionNoFreeSlot
	// DecisionClaimGranted: an unbound slot was bound to the target account.
	DecisionClaimGranted
	// DecisionBoundAccess: a slot is already bound to this exact account;
	// full access without re-binding.
	DecisionBoundAccess
)

func (s DecisionState) String() string {
	switch s {
	case DecisionNoActiveSubscription:
		return "no_active_subscription"
	case DecisionAccountIneligible:
		return "account_ineligible"
	case DecisionNoFreeSlot:
		return "no_free_slot"
	case DecisionClaimGranted:
		return "claim_granted"
	case DecisionBoundAccess:
		return "bound_access"
	}
	return "unknown"
}

// Decision is the discriminated result the conversational layer renders.
// It carries only the minimal data each screen needs.
type Decision struct {
	State    DecisionState
	Username string
	// Subscription is set for ClaimGranted and BoundAccess.
	Subscription *Subscription
	// Tariffs is set for paywall-style states so the rendering layer can
	// offer plans without a second catalog query.
	Tariffs []*TariffPlan
}

// CollectOutcome classifies the result of a quota-consuming data refresh.
type CollectOutcome int

const (
	// CollectStarted: the refresh was started and one request was consumed.
	CollectStarted CollectOutcome = iota
	// CollectNoChange: the provider diff was flat, nothing was consumed.
	CollectNoChange
	// CollectQuotaExhausted: no requests left; the user gets a purchase affordance.
	CollectQuotaExhausted
	// CollectSoftFailure: the provider returned an expected, user-visible failure.
	CollectSoftFailure
)

// CollectResult is what a collect-data action produced.
type CollectResult struct {
	Outcome      CollectOutcome
	Username     string
	RequestsLeft int
	// Detail is the provider's soft-failure text for CollectSoftFailure.
	Detail string
}
