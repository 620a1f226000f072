// Package catalog exposes the read-only tariff catalog. Plans are
// administered out of band; the only write path here is seeding defaults
// into an empty table on startup.
package catalog

import (
	"github.com/instatrack/instatrack/internal/models"
	"github.com/instatrack/instatrack/pkg/logger"
)

type Catalog struct {
	logger *logger.Logger
	repo   models.Repository
}

func NewCatalog(repo models.Repository, logger *logger.Logger) *Catalog {
	return &Catalog{repo: repo, logger: logger}
}

// Get returns the plan by id. ErrNotFound is permanent: callers surface
// "plan unavailable" and never retry.
func (c *Catalog) Get(id int64) (*models.TariffPlan, error) {
	return c.repo.GetTariff(id)
}

// ByAmount matches an inbound payment amount to a plan. Amounts are unique
// across plans.
func (c *Catalog) ByAmount(amount int64) (*models.TariffPlan, error) {
	return c.repo.GetTariffByAmount(amount)
}

func (c *Catalog) List() ([]*models.TariffPlan, error) {
	return c.repo.ListTariffs()
}

// DefaultPlans are inserted into an empty catalog on startup.
var DefaultPlans = []models.TariffPlan{
	{PaymentAmount: 200, AccessDays: 30, RequestsBalance: 10, TrackingReportInterval: 24 * 3600},
	{PaymentAmount: 450, AccessDays: 30, RequestsBalance: 30, TrackingReportInterval: 12 * 3600},
	{PaymentAmount: 900, AccessDays: 30, RequestsBalance: 60, TrackingReportInterval: 6 * 3600, BigAccounts: true},
}

// Seed inserts DefaultPlans when the tariffs table is empty. A populated
// table is left untouched, so administered plans are never overwritten.
func (c *Catalog) Seed() error {
	count, err := c.repo.CountTariffs()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for i := range DefaultPlans {
		plan := DefaultPlans[i]
		if err := c.repo.CreateTariff(&plan); err != nil {
			return err
		}
	}
	c.logger.Info("Seeded default tariff plans ", "count ", len(DefaultPlans))
	return nil
}
