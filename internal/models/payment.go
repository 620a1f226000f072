package models

// PaymentProduct is what a verified payment event buys.
type PaymentProduct string

const (
	// ProductSubscription creates or renews a subscription.
	ProductSubscription PaymentProduct = "subscription"
	// ProductRequests tops up the request balance of an existing subscription.
	ProductRequests PaymentProduct = "requests"
)

// PaymentRecord is the immutable trace of a successfully applied payment event.
// Created once per verified event, never mutated or deleted.
type PaymentRecord struct {
	// ID is the unique identifier for the record.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// UserTelegramID is the paying user.
	UserTelegramID int64 `json:"user_telegram_id" gorm:"column:user_telegram_id;index;not null"`
	// TransactionID is the gateway transaction id. Unique: a re-delivered
	// webhook for the same transaction is applied at most once.
	TransactionID int64 `json:"transaction_id" gorm:"column:transaction_id;unique;not null"`
	// Product is what the payment bought.
	Product PaymentProduct `json:"product" gorm:"column:product;not null"`
	// Amount is the paid amount in integer currency units.
	Amount int64 `json:"amount" gorm:"column:amount;not null"`
	// GatewaySubscriptionID is the gateway's recurring-subscription id, if any.
	GatewaySubscriptionID *string `json:"gateway_subscription_id" gorm:"column:gateway_subscription_id"`
	// CreatedAt is the Unix timestamp when the record was written.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at"`
}

// PaymentEvent is a verified payment notification from the gateway, after
// signature verification and payload parsing at the HTTP boundary.
type PaymentEvent struct {
	UserTelegramID        int64
	TariffID              int64
	Product               PaymentProduct
	Amount                int64
	TransactionID         int64
	TrackingUsername      string
	GatewaySubscriptionID string
}
