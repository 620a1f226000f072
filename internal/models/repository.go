package models

// Repository is the persistence contract for the tariff catalog, the
// subscription ledger and the tracking registry. All mutation of
// subscriptions and trackings goes through here; no other component touches
// these rows directly.
type Repository interface {
	// Tariff catalog.
	GetTariff(id int64) (*TariffPlan, error)
	GetTariffByAmount(amount int64) (*TariffPlan, error)
	ListTariffs() ([]*TariffPlan, error)
	CountTariffs() (int64, error)
	CreateTariff(tariff *TariffPlan) error

	// Subscription ledger.
	CreateSubscription(sub *Subscription) error
	GetSubscription(id int64) (*Subscription, error)
	ActiveSubscriptions(userTelegramID int64) ([]*Subscription, error)
	// FindUnboundOrMatching returns, among the user's active subscriptions,
	// the one bound to trackingUsername if it exists, else the first unbound
	// one in insertion order, else ErrNotFound.
	FindUnboundOrMatching(userTelegramID int64, trackingUsername string) (*Subscription, error)
	// FindBoundSubscription returns the user's active subscription bound to
	// exactly trackingUsername, or ErrNotFound.
	FindBoundSubscription(userTelegramID int64, trackingUsername string) (*Subscription, error)
	// BindSubscription claims the slot for trackingUsername. The update is a
	// single conditional write: it succeeds only while the slot is unbound or
	// already bound to the same account, so concurrent claims cannot both win.
	// Binding to a different account fails with ErrConflict.
	BindSubscription(id int64, trackingUsername string) (*Subscription, error)
	// ConsumeRequest decrements requests_available by one. It fails with
	// ErrQuotaExhausted, leaving the value unchanged, when the balance is
	// already zero.
	ConsumeRequest(id int64) (*Subscription, error)
	TopUpRequests(id int64, amount int) (*Subscription, error)
	// RenewSubscription moves an existing subscription to a new tariff in
	// place: tariff, expiry and request balance are replaced, the binding is kept.
	RenewSubscription(id int64, tariffID int64, expireAt int64, requestsBalance int) (*Subscription, error)

	// Tracking registry.
	CreateTracking(tracking *Tracking) error
	GetTracking(creatorTelegramID int64, instagramUsername string) (*Tracking, error)
	ListTrackings(creatorTelegramID int64) ([]*Tracking, error)
	ListAllTrackings() ([]*Tracking, error)
	DeleteTracking(creatorTelegramID int64, instagramUsername string) error

	// Payment records.
	CreatePayment(payment *PaymentRecord) error
	PaymentByTransactionID(transactionID int64) (*PaymentRecord, error)

	// Users.
	UpsertUser(user *User) error
	GetUser(telegramID int64) (*User, error)

	// WithTx runs fn against a transactional view of the repository.
	// Any error rolls the whole unit of work back.
	WithTx(fn func(Repository) error) error

	Close() error
}
