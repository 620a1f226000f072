package models

// TariffPlan represents a purchasable plan in the catalog.
type TariffPlan struct {
	// ID is the unique identifier for the tariff.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// PaymentAmount is the plan price in integer currency units.
	// It is unique across plans so an inbound payment amount can be matched to a plan.
	PaymentAmount int64 `json:"payment_amount" gorm:"column:payment_amount;unique;not null"`
	// AccessDays is the subscription length granted on purchase.
	AccessDays int `json:"access_days" gorm:"column:access_days;not null"`
	// RequestsBalance is the consumable request quota granted on purchase.
	RequestsBalance int `json:"requests_balance" gorm:"column:requests_balance;not null"`
	// TrackingReportInterval is the report period in seconds. It is a policy
	// value consumed by the report scheduler, not enforced by the core.
	TrackingReportInterval int64 `json:"tracking_report_interval" gorm:"column:tracking_report_interval"`
	// BigAccounts marks plans that may claim accounts above the popularity threshold.
	BigAccounts bool `json:"big_accounts" gorm:"column:big_accounts;default:false"`
}
