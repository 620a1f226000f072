package models

// Tracking is a user's registration of interest in an external account.
// It is independent of subscriptions: a tracking can outlive the slot
// that was claimed for it.
type Tracking struct {
	// ID is the unique identifier for the tracking.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// CreatorTelegramID is the user who follows the account.
	CreatorTelegramID int64 `json:"creator_telegram_id" gorm:"column:creator_telegram_id;not null;index;uniqueIndex:tracking_uq"`
	// InstagramUsername is the external account handle.
	InstagramUsername string `json:"instagram_username" gorm:"column:instagram_username;not null;index;uniqueIndex:tracking_uq"`
	// CreatedAt is the Unix timestamp when the tracking was created.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at"`
}
