package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/instatrack/instatrack/internal/catalog"
	"github.com/instatrack/instatrack/internal/models"
	"github.com/instatrack/instatrack/internal/payment"
	"github.com/instatrack/instatrack/internal/repository"
	"github.com/instatrack/instatrack/internal/testutil"
	"github.com/instatrack/instatrack/pkg/logger"
)

// fakeProvider serves canned profiles and diffs.
type fakeProvider struct {
	profiles map[string]*models.ProfileInfo
	diff     *models.ProfileStatsDiff
	diffErr  error

	reports []string
}

func (f *fakeProvider) StartTracking(ctx context.Context, username string) (*models.ProfileInfo, error) {
	return f.GetProfile(ctx, username)
}

func (f *fakeProvider) GetProfile(_ context.Context, username string) (*models.ProfileInfo, error) {
	info, ok := f.profiles[username]
	if !ok {
		return nil, models.ErrNotFound
	}
	return info, nil
}

func (f *fakeProvider) StatsDiff(_ context.Context, username string, _ int) (*models.ProfileStatsDiff, error) {
	if f.diffErr != nil {
		return nil, f.diffErr
	}
	if f.diff != nil {
		return f.diff, nil
	}
	return &models.ProfileStatsDiff{Username: username, FollowersCountDifference: 5}, nil
}

func (f *fakeProvider) MediaStats(context.Context, string, int) (*models.MediaUserStats, error) {
	return &models.MediaUserStats{}, nil
}

func (f *fakeProvider) FollowersDiff(context.Context, string) ([]*models.FollowDifference, error) {
	return nil, nil
}

func (f *fakeProvider) FollowingDiff(context.Context, string) ([]*models.FollowDifference, error) {
	return nil, nil
}

func (f *fakeProvider) CreateReport(_ context.Context, _ int64, username string) error {
	f.reports = append(f.reports, username)
	return nil
}

func smallAccount(username string) *models.ProfileInfo {
	return &models.ProfileInfo{Username: username, FollowersCount: 1500, FollowingCount: 300}
}

func bigAccount(username string) *models.ProfileInfo {
	return &models.ProfileInfo{Username: username, FollowersCount: 250000, FollowingCount: 100}
}

func newService(t *testing.T, db *gorm.DB, provider models.StatsProvider) *Service {
	t.Helper()
	repo := repository.New(db, logger.NewNop())
	plans := catalog.NewCatalog(repo, logger.NewNop())
	return NewService(repo, plans, provider, logger.NewNop())
}

func TestDecide_NoActiveSubscription(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	testutil.TestTariff(t, db)
	svc := newService(t, db, &fakeProvider{profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")}})

	decision, err := svc.Decide(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNoActiveSubscription, decision.State)
	// Paywall decisions carry the catalog for rendering.
	assert.NotEmpty(t, decision.Tariffs)
}

func TestDecide_ExpiredSubscriptionDoesNotCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	testutil.TestSubscription(t, db, 100, tariff, testutil.Expired())
	svc := newService(t, db, &fakeProvider{profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")}})

	decision, err := svc.Decide(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNoActiveSubscription, decision.State)
}

func TestDecide_BigAccountNeedsDedicatedTariff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	regular := testutil.TestTariff(t, db)
	testutil.TestSubscription(t, db, 100, regular)
	provider := &fakeProvider{profiles: map[string]*models.ProfileInfo{"cristiano": bigAccount("cristiano")}}
	svc := newService(t, db, provider)

	decision, err := svc.Decide(context.Background(), 100, "cristiano")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccountIneligible, decision.State)

	// With a big-accounts slot the claim is allowed.
	big := testutil.TestTariff(t, db, testutil.WithAmount(900), testutil.ForBigAccounts())
	testutil.TestSubscription(t, db, 200, big)
	decision, err = svc.Decide(context.Background(), 200, "cristiano")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionClaimGranted, decision.State)
}

func TestDecide_DoesNotMutate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	sub := testutil.TestSubscription(t, db, 100, tariff)
	svc := newService(t, db, &fakeProvider{profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")}})

	decision, err := svc.Decide(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionClaimGranted, decision.State)

	// The slot is still unbound and no tracking was registered.
	repo := repository.New(db, logger.NewNop())
	kept, err := repo.GetSubscription(sub.ID)
	require.NoError(t, err)
	assert.True(t, kept.Unbound())
	_, err = repo.GetTracking(100, "natgeo")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestClaim_BindsSlotAndRegistersTracking(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	sub := testutil.TestSubscription(t, db, 100, tariff)
	svc := newService(t, db, &fakeProvider{profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")}})

	decision, err := svc.Claim(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionClaimGranted, decision.State)
	assert.Equal(t, sub.ID, decision.Subscription.ID)

	repo := repository.New(db, logger.NewNop())
	bound, err := repo.GetSubscription(sub.ID)
	require.NoError(t, err)
	assert.True(t, bound.BoundTo("natgeo"))
	_, err = repo.GetTracking(100, "natgeo")
	require.NoError(t, err)

	// A repeat claim is a plain access confirmation.
	decision, err = svc.Claim(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionBoundAccess, decision.State)
}

func TestClaim_PrefersSlotBoundToTarget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	testutil.TestSubscription(t, db, 100, tariff)
	bound := testutil.TestSubscription(t, db, 100, tariff, testutil.BoundTo("natgeo"))
	svc := newService(t, db, &fakeProvider{profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")}})

	decision, err := svc.Claim(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionBoundAccess, decision.State)
	assert.Equal(t, bound.ID, decision.Subscription.ID)

	// The unbound slot stays free for another account.
	subs, err := svc.ActiveSubscriptions(100)
	require.NoError(t, err)
	free := 0
	for _, s := range subs {
		if s.Unbound() {
			free++
		}
	}
	assert.Equal(t, 1, free)
}

func TestClaim_NoFreeSlot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	testutil.TestSubscription(t, db, 100, tariff, testutil.BoundTo("other_account"))
	svc := newService(t, db, &fakeProvider{profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")}})

	decision, err := svc.Claim(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNoFreeSlot, decision.State)
	assert.NotEmpty(t, decision.Tariffs)
}

func TestCollectData_ConsumesOneRequest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	testutil.TestSubscription(t, db, 100, tariff, testutil.BoundTo("natgeo"), testutil.WithBalance(3))
	provider := &fakeProvider{profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")}}
	svc := newService(t, db, provider)

	result, err := svc.CollectData(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.CollectStarted, result.Outcome)
	assert.Equal(t, 2, result.RequestsLeft)
	assert.Equal(t, []string{"natgeo"}, provider.reports)
}

func TestCollectData_FlatDiffIsFree(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	testutil.TestSubscription(t, db, 100, tariff, testutil.BoundTo("natgeo"), testutil.WithBalance(3))
	provider := &fakeProvider{
		profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")},
		diff:     &models.ProfileStatsDiff{Username: "natgeo"},
	}
	svc := newService(t, db, provider)

	result, err := svc.CollectData(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.CollectNoChange, result.Outcome)
	assert.Equal(t, 3, result.RequestsLeft)
	assert.Empty(t, provider.reports)
}

func TestCollectData_QuotaExhausted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	testutil.TestSubscription(t, db, 100, tariff, testutil.BoundTo("natgeo"), testutil.WithBalance(0))
	provider := &fakeProvider{profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")}}
	svc := newService(t, db, provider)

	result, err := svc.CollectData(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.CollectQuotaExhausted, result.Outcome)
	assert.Empty(t, provider.reports)
}

func TestCollectData_SoftProviderFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	testutil.TestSubscription(t, db, 100, tariff, testutil.BoundTo("natgeo"), testutil.WithBalance(3))
	provider := &fakeProvider{
		profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")},
		diffErr:  &models.SoftProviderError{Detail: "not enough data collected yet"},
	}
	svc := newService(t, db, provider)

	result, err := svc.CollectData(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.CollectSoftFailure, result.Outcome)
	assert.Equal(t, "not enough data collected yet", result.Detail)
	assert.Equal(t, 3, result.RequestsLeft)
}

func TestCollectData_RequiresBoundSlot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	testutil.TestSubscription(t, db, 100, tariff)
	svc := newService(t, db, &fakeProvider{profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")}})

	_, err := svc.CollectData(context.Background(), 100, "natgeo")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// TestPurchaseClaimCollectFlow walks the whole happy path: a user with no
// subscription hits the paywall, buys a plan, claims an account and spends a
// refresh on it.
func TestPurchaseClaimCollectFlow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db, testutil.WithRequests(3))
	provider := &fakeProvider{profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")}}
	svc := newService(t, db, provider)

	decision, err := svc.Decide(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNoActiveSubscription, decision.State)

	repo := repository.New(db, logger.NewNop())
	plans := catalog.NewCatalog(repo, logger.NewNop())
	payments := payment.NewService(repo, plans, nil, logger.NewNop())
	err = payments.Apply(context.Background(), &models.PaymentEvent{
		UserTelegramID: 100,
		TariffID:       tariff.ID,
		Product:        models.ProductSubscription,
		Amount:         tariff.PaymentAmount,
		TransactionID:  8001,
	})
	require.NoError(t, err)

	decision, err = svc.Claim(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionClaimGranted, decision.State)
	assert.Equal(t, 3, decision.Subscription.RequestsAvailable)

	result, err := svc.CollectData(context.Background(), 100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, models.CollectStarted, result.Outcome)
	assert.Equal(t, 2, result.RequestsLeft)
}

func TestUntrack_KeepsSlotBound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	sub := testutil.TestSubscription(t, db, 100, tariff, testutil.BoundTo("natgeo"))
	testutil.TestTracking(t, db, 100, "natgeo")
	svc := newService(t, db, &fakeProvider{profiles: map[string]*models.ProfileInfo{"natgeo": smallAccount("natgeo")}})

	require.NoError(t, svc.Untrack(context.Background(), 100, "natgeo"))

	repo := repository.New(db, logger.NewNop())
	_, err := repo.GetTracking(100, "natgeo")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// The paid period does not free the slot for a different account.
	kept, err := repo.GetSubscription(sub.ID)
	require.NoError(t, err)
	assert.True(t, kept.BoundTo("natgeo"))
}
