package reporter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instatrack/instatrack/internal/models"
	"github.com/instatrack/instatrack/internal/repository"
	"github.com/instatrack/instatrack/internal/testutil"
	"github.com/instatrack/instatrack/pkg/logger"
)

type reportSink struct {
	reports []string
}

func (r *reportSink) SubscriptionActivated(context.Context, int64, string) {}
func (r *reportSink) RequestsAdded(context.Context, int64, string, int)    {}
func (r *reportSink) ReportReady(_ context.Context, _ int64, username string) {
	r.reports = append(r.reports, username)
}

func TestDispatchDue_SendsForActiveBoundSubscriptions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	testutil.TestSubscription(t, db, 100, tariff, testutil.BoundTo("natgeo"))
	testutil.TestTracking(t, db, 100, "natgeo")

	// Tracking without any subscription behind it: no report.
	testutil.TestTracking(t, db, 100, "nasa")

	// Tracking whose subscription expired: no report.
	testutil.TestSubscription(t, db, 200, tariff, testutil.BoundTo("bbc"), testutil.Expired())
	testutil.TestTracking(t, db, 200, "bbc")

	sink := &reportSink{}
	r := New(repository.New(db, logger.NewNop()), sink, logger.NewNop())

	require.NoError(t, r.dispatchDue(context.Background()))
	assert.Equal(t, []string{"natgeo"}, sink.reports)

	// Within the tariff interval nothing is re-sent.
	require.NoError(t, r.dispatchDue(context.Background()))
	assert.Equal(t, []string{"natgeo"}, sink.reports)
}

func TestDispatchDue_SkipsZeroInterval(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db, func(p *models.TariffPlan) {
		p.TrackingReportInterval = 0
	})
	testutil.TestSubscription(t, db, 100, tariff, testutil.BoundTo("natgeo"))
	testutil.TestTracking(t, db, 100, "natgeo")

	sink := &reportSink{}
	r := New(repository.New(db, logger.NewNop()), sink, logger.NewNop())

	require.NoError(t, r.dispatchDue(context.Background()))
	assert.Empty(t, sink.reports)
}
