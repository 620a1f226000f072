package http_api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/instatrack/instatrack/internal/catalog"
	"github.com/instatrack/instatrack/internal/entitlement"
	"github.com/instatrack/instatrack/internal/models"
	"github.com/instatrack/instatrack/internal/payment"
	"github.com/instatrack/instatrack/internal/repository"
	"github.com/instatrack/instatrack/internal/testutil"
	"github.com/instatrack/instatrack/pkg/logger"
)

const testSecret = "test-webhook-secret"

type reportSink struct {
	reports []string
}

func (r *reportSink) SubscriptionActivated(context.Context, int64, string) {}
func (r *reportSink) RequestsAdded(context.Context, int64, string, int)    {}
func (r *reportSink) ReportReady(_ context.Context, _ int64, username string) {
	r.reports = append(r.reports, username)
}

func newTestServer(t *testing.T, db *gorm.DB, notifier models.Notifier) *HTTPServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.New(db, logger.NewNop())
	plans := catalog.NewCatalog(repo, logger.NewNop())
	payments := payment.NewService(repo, plans, notifier, logger.NewNop())
	entitlements := entitlement.NewService(repo, plans, nil, logger.NewNop())
	return NewHTTPServer(payments, entitlements, notifier, testSecret, 0, logger.NewNop())
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookBody(transactionID, amount, data string) string {
	form := url.Values{}
	form.Set("TransactionId", transactionID)
	form.Set("Amount", amount)
	form.Set("Data", data)
	return form.Encode()
}

func postWebhook(s *HTTPServer, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Content-HMAC", signature)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestPaymentWebhook_AppliesPayment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	s := newTestServer(t, db, &reportSink{})

	body := webhookBody("9001", "200.00",
		`{"user_telegram_id":100,"tariff_id":`+strconv.FormatInt(tariff.ID, 10)+`,"product":"subscription","tracking_username":"natgeo"}`)
	rec := postWebhook(s, body, sign(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":0}`, rec.Body.String())

	repo := repository.New(db, logger.NewNop())
	sub, err := repo.FindBoundSubscription(100, "natgeo")
	require.NoError(t, err)
	assert.Equal(t, tariff.RequestsBalance, sub.RequestsAvailable)
}

func TestPaymentWebhook_RejectsBadSignature(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	s := newTestServer(t, db, &reportSink{})

	body := webhookBody("9002", "200.00",
		`{"user_telegram_id":100,"tariff_id":`+strconv.FormatInt(tariff.ID, 10)+`,"product":"subscription"}`)
	rec := postWebhook(s, body, "bm90LXRoZS1yaWdodC1zaWduYXR1cmU=")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	repo := repository.New(db, logger.NewNop())
	subs, err := repo.ActiveSubscriptions(100)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestPaymentWebhook_MissingData(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	s := newTestServer(t, db, &reportSink{})

	form := url.Values{}
	form.Set("TransactionId", "9003")
	form.Set("Amount", "200.00")
	body := form.Encode()
	rec := postWebhook(s, body, sign(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":10}`, rec.Body.String())
}

func TestPaymentWebhook_AmountMismatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	s := newTestServer(t, db, &reportSink{})

	body := webhookBody("9004", "150.00",
		`{"user_telegram_id":100,"tariff_id":`+strconv.FormatInt(tariff.ID, 10)+`,"product":"subscription"}`)
	rec := postWebhook(s, body, sign(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":11}`, rec.Body.String())
}

func TestPaymentWebhook_UnknownTariff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	s := newTestServer(t, db, &reportSink{})

	body := webhookBody("9005", "200.00",
		`{"user_telegram_id":100,"tariff_id":12345,"product":"subscription"}`)
	rec := postWebhook(s, body, sign(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":12}`, rec.Body.String())
}

func TestPaymentWebhook_DuplicateDelivery(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	s := newTestServer(t, db, &reportSink{})

	body := webhookBody("9006", "200.00",
		`{"user_telegram_id":100,"tariff_id":`+strconv.FormatInt(tariff.ID, 10)+`,"product":"subscription","tracking_username":"natgeo"}`)

	rec := postWebhook(s, body, sign(body))
	assert.JSONEq(t, `{"code":0}`, rec.Body.String())
	rec = postWebhook(s, body, sign(body))
	assert.JSONEq(t, `{"code":0}`, rec.Body.String())

	repo := repository.New(db, logger.NewNop())
	subs, err := repo.ActiveSubscriptions(100)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestListTariffs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	testutil.TestTariff(t, db)
	testutil.TestTariff(t, db, testutil.WithAmount(450))
	s := newTestServer(t, db, &reportSink{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tariffs", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var tariffs []models.TariffPlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tariffs))
	assert.Len(t, tariffs, 2)
}

func TestListSubscriptions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tariff := testutil.TestTariff(t, db)
	testutil.TestSubscription(t, db, 100, tariff, testutil.BoundTo("natgeo"))
	s := newTestServer(t, db, &reportSink{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions?user_id=100", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportReady_ForwardsToNotifier(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	sink := &reportSink{}
	s := newTestServer(t, db, sink)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/100/report",
		strings.NewReader(`{"username":"natgeo"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"natgeo"}, sink.reports)
}
