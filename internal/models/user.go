package models

// User represents a chat user in the system.
type User struct {
	// ID is the unique identifier for the user.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// TelegramID is the user's Telegram identifier.
	TelegramID int64 `json:"telegram_id" gorm:"column:telegram_id;unique;not null"`
	// TelegramUsername is the @handle, if the user has one.
	TelegramUsername string `json:"telegram_username" gorm:"column:telegram_username"`
	// TelegramName is the display name.
	TelegramName string `json:"telegram_name" gorm:"column:telegram_name"`
	// CreatedAt is the Unix timestamp when the user first talked to the bot.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at;index"`
}
