package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/instatrack/instatrack/internal/models"
	"github.com/instatrack/instatrack/pkg/logger"
)

type DB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

// NewPostgresDB connects to PostgreSQL and migrates the schema.
func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &DB{Conn: db, logger: logger}, nil
}

// New wraps an already opened gorm connection. Used by tests and WithTx.
func New(conn *gorm.DB, logger *logger.Logger) models.Repository {
	return &DB{Conn: conn, logger: logger}
}

// Migrate creates or updates the schema for all persisted models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.TariffPlan{},
		&models.Subscription{},
		&models.Tracking{},
		&models.PaymentRecord{},
		&models.User{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

// WithTx runs fn against a transactional repository view. Any error from fn
// rolls the transaction back.
func (db *DB) WithTx(fn func(models.Repository) error) error {
	return db.Conn.Transaction(func(tx *gorm.DB) error {
		return fn(&DB{Conn: tx, logger: db.logger})
	})
}

// --- Tariff catalog ---

func (db *DB) GetTariff(id int64) (*models.TariffPlan, error) {
	var tariff models.TariffPlan
	if err := db.Conn.Where("id = ?", id).First(&tariff).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tariff %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tariff: %s", err)
	}
	return &tariff, nil
}

func (db *DB) GetTariffByAmount(amount int64) (*models.TariffPlan, error) {
	var tariff models.TariffPlan
	if err := db.Conn.Where("payment_amount = ?", amount).First(&tariff).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tariff with amount %d: %w", amount, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tariff by amount: %s", err)
	}
	return &tariff, nil
}

func (db *DB) ListTariffs() ([]*models.TariffPlan, error) {
	var tariffs []*models.TariffPlan
	if err := db.Conn.Order("payment_amount").Find(&tariffs).Error; err != nil {
		return nil, fmt.Errorf("failed to list tariffs: %s", err)
	}
	return tariffs, nil
}

func (db *DB) CountTariffs() (int64, error) {
	var count int64
	if err := db.Conn.Model(&models.TariffPlan{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count tariffs: %s", err)
	}
	return count, nil
}

func (db *DB) CreateTariff(tariff *models.TariffPlan) error {
	if err := db.Conn.Create(tariff).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("tariff with amount %d: %w", tariff.PaymentAmount, models.ErrConflict)
		}
		return fmt.Errorf("failed to create tariff: %s", err)
	}
	return nil
}

// --- Subscription ledger ---

func (db *DB) CreateSubscription(sub *models.Subscription) error {
	if sub.CreatedAt == 0 {
		sub.CreatedAt = time.Now().Unix()
	}
	if err := db.Conn.Omit(clause.Associations).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %s", err)
	}
	return nil
}

func (db *DB) GetSubscription(id int64) (*models.Subscription, error) {
	var sub models.Subscription
	if err := db.Conn.Preload("Tariff").Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscription %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subscription: %s", err)
	}
	return &sub, nil
}

func (db *DB) ActiveSubscriptions(userTelegramID int64) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	if err := db.Conn.Preload("Tariff").
		Where("user_telegram_id = ? AND expire_at > ?", userTelegramID, time.Now().Unix()).
		Order("id").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %s", err)
	}
	return subs, nil
}

// FindUnboundOrMatching resolves the claim target with one ordered query:
// a slot already bound to the account sorts before unbound slots, unbound
// slots keep insertion order.
func (db *DB) FindUnboundOrMatching(userTelegramID int64, trackingUsername string) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Conn.Preload("Tariff").
		Where("user_telegram_id = ? AND expire_at > ?", userTelegramID, time.Now().Unix()).
		Where("tracking_username = ? OR tracking_username IS NULL", trackingUsername).
		Order("tracking_username IS NULL, id").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no unbound or matching subscription: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find unbound or matching subscription: %s", err)
	}
	return &sub, nil
}

func (db *DB) FindBoundSubscription(userTelegramID int64, trackingUsername string) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Conn.Preload("Tariff").
		Where("user_telegram_id = ? AND tracking_username = ? AND expire_at > ?",
			userTelegramID, trackingUsername, time.Now().Unix()).
		Order("id").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscription bound to %s: %w", trackingUsername, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find bound subscription: %s", err)
	}
	return &sub, nil
}

// BindSubscription claims the slot with a single conditional update, so two
// concurrent claims on the same unbound slot cannot both succeed.
func (db *DB) BindSubscription(id int64, trackingUsername string) (*models.Subscription, error) {
	res := db.Conn.Model(&models.Subscription{}).
		Where("id = ? AND (tracking_username IS NULL OR tracking_username = ?)", id, trackingUsername).
		Update("tracking_username", trackingUsername)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to bind subscription: %s", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := db.GetSubscription(id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("subscription %d already bound to another account: %w", id, models.ErrConflict)
	}
	return db.GetSubscription(id)
}

// ConsumeRequest decrements the request balance with a conditional update;
// the balance can never go below zero.
func (db *DB) ConsumeRequest(id int64) (*models.Subscription, error) {
	res := db.Conn.Model(&models.Subscription{}).
		Where("id = ? AND requests_available > 0", id).
		Update("requests_available", gorm.Expr("requests_available - 1"))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to consume request: %s", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := db.GetSubscription(id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("subscription %d: %w", id, models.ErrQuotaExhausted)
	}
	return db.GetSubscription(id)
}

func (db *DB) TopUpRequests(id int64, amount int) (*models.Subscription, error) {
	res := db.Conn.Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("requests_available", gorm.Expr("requests_available + ?", amount))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to top up requests: %s", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("subscription %d: %w", id, models.ErrNotFound)
	}
	return db.GetSubscription(id)
}

func (db *DB) RenewSubscription(id int64, tariffID int64, expireAt int64, requestsBalance int) (*models.Subscription, error) {
	res := db.Conn.Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"tariff_id":          tariffID,
			"expire_at":          expireAt,
			"requests_available": requestsBalance,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to renew subscription: %s", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("subscription %d: %w", id, models.ErrNotFound)
	}
	return db.GetSubscription(id)
}

// --- Tracking registry ---

func (db *DB) CreateTracking(tracking *models.Tracking) error {
	if tracking.CreatedAt == 0 {
		tracking.CreatedAt = time.Now().Unix()
	}
	if err := db.Conn.Create(tracking).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("tracking %s for user %d: %w",
				tracking.InstagramUsername, tracking.CreatorTelegramID, models.ErrConflict)
		}
		return fmt.Errorf("failed to create tracking: %s", err)
	}
	return nil
}

func (db *DB) GetTracking(creatorTelegramID int64, instagramUsername string) (*models.Tracking, error) {
	var tracking models.Tracking
	err := db.Conn.
		Where("creator_telegram_id = ? AND instagram_username = ?", creatorTelegramID, instagramUsername).
		First(&tracking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tracking %s: %w", instagramUsername, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tracking: %s", err)
	}
	return &tracking, nil
}

func (db *DB) ListTrackings(creatorTelegramID int64) ([]*models.Tracking, error) {
	var trackings []*models.Tracking
	if err := db.Conn.Where("creator_telegram_id = ?", creatorTelegramID).Order("id").Find(&trackings).Error; err != nil {
		return nil, fmt.Errorf("failed to list trackings: %s", err)
	}
	return trackings, nil
}

func (db *DB) ListAllTrackings() ([]*models.Tracking, error) {
	var trackings []*models.Tracking
	if err := db.Conn.Order("id").Find(&trackings).Error; err != nil {
		return nil, fmt.Errorf("failed to list all trackings: %s", err)
	}
	return trackings, nil
}

func (db *DB) DeleteTracking(creatorTelegramID int64, instagramUsername string) error {
	res := db.Conn.
		Where("creator_telegram_id = ? AND instagram_username = ?", creatorTelegramID, instagramUsername).
		Delete(&models.Tracking{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete tracking: %s", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("tracking %s: %w", instagramUsername, models.ErrNotFound)
	}
	return nil
}

// --- Payment records ---

func (db *DB) CreatePayment(payment *models.PaymentRecord) error {
	if payment.CreatedAt == 0 {
		payment.CreatedAt = time.Now().Unix()
	}
	if err := db.Conn.Create(payment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("payment transaction %d: %w", payment.TransactionID, models.ErrConflict)
		}
		return fmt.Errorf("failed to create payment record: %s", err)
	}
	return nil
}

func (db *DB) PaymentByTransactionID(transactionID int64) (*models.PaymentRecord, error) {
	var payment models.PaymentRecord
	if err := db.Conn.Where("transaction_id = ?", transactionID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment transaction %d: %w", transactionID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment record: %s", err)
	}
	return &payment, nil
}

// --- Users ---

func (db *DB) UpsertUser(user *models.User) error {
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}
	err := db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"telegram_username", "telegram_name"}),
	}).Create(user).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user: %s", err)
	}
	return nil
}

func (db *DB) GetUser(telegramID int64) (*models.User, error) {
	var user models.User
	if err := db.Conn.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", telegramID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %s", err)
	}
	return &user, nil
}
