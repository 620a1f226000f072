package models

import "time"

// Subscription is a paid entitlement period with a consumable request quota,
// optionally bound to exactly one tracked account ("slot").
type Subscription struct {
	// ID is the unique identifier for the subscription.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// UserTelegramID is the owning user.
	UserTelegramID int64 `json:"user_telegram_id" gorm:"column:user_telegram_id;index;not null"`
	// TariffID references the plan this subscription was bought on.
	TariffID int64 `json:"tariff_id" gorm:"column:tariff_id;not null"`
	// Tariff is the referenced plan, loaded eagerly by the repository.
	Tariff TariffPlan `json:"tariff" gorm:"foreignKey:TariffID"`
	// ExpireAt is the Unix timestamp after which the subscription is no longer active.
	ExpireAt int64 `json:"expire_at" gorm:"column:expire_at;index;not null"`
	// TrackingUsername is the account this slot is bound to. Nil means an
	// unbound slot that can be claimed exactly once.
	TrackingUsername *string `json:"tracking_username" gorm:"column:tracking_username;index"`
	// RequestsAvailable is the remaining on-demand refresh quota. Never negative.
	RequestsAvailable int `json:"requests_available" gorm:"column:requests_available;not null"`
	// RenewalEnabled indicates the gateway auto-renews this subscription.
	RenewalEnabled bool `json:"renewal_enabled" gorm:"column:renewal_enabled;default:true"`
	// GatewaySubscriptionID is the payment gateway's recurring-subscription
	// correlation id, when the gateway created one.
	GatewaySubscriptionID *string `json:"gateway_subscription_id" gorm:"column:gateway_subscription_id"`
	// CreatedAt is the Unix timestamp when the subscription was created.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at"`
}

// Active reports whether the subscription has not expired yet.
func (s *Subscription) Active(now time.Time) bool {
	return s.ExpireAt > now.Unix()
}

// BoundTo reports whether the slot is bound to the given account.
func (s *Subscription) BoundTo(username string) bool {
	return s.TrackingUsername != nil && *s.TrackingUsername == username
}

// Unbound reports whether the slot has not been claimed yet.
func (s *Subscription) Unbound() bool {
	return s.TrackingUsername == nil
}
