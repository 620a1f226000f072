package http_api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/instatrack/instatrack/internal/models"
)

// Gateway response codes. The gateway retries per its own policy on any
// nonzero code; the core never retries on its own.
const (
	codeOK             = 0
	codeMissingData    = 10
	codeAmountMismatch = 11
	codeNotFound       = 12
)

// webhookData is the nested URL-encoded "Data" block the bot attaches to a
// payment when sending the user to the gateway.
type webhookData struct {
	UserTelegramID   int64  `json:"user_telegram_id"`
	TariffID         int64  `json:"tariff_id"`
	Product          string `json:"product"`
	TrackingUsername string `json:"tracking_username"`
}

// verifySignature checks the HMAC-SHA256 of the raw body against the
// Content-HMAC header (base64, shared secret).
func (s *HTTPServer) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// paymentWebhook handles the gateway's pay notification: a form-encoded body
// carrying the transaction, the amount and the nested Data block. The
// signature gate rejects everything unverified before any parsing happens.
func (s *HTTPServer) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeMissingData})
		return
	}

	if !s.verifySignature(body, c.GetHeader("Content-HMAC")) {
		s.logger.Warn("Payment webhook signature mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		s.logger.Debug("Unparseable payment webhook body", "error", err)
		c.JSON(http.StatusOK, gin.H{"code": codeMissingData})
		return
	}

	transactionID, err := strconv.ParseInt(form.Get("TransactionId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"code": codeMissingData})
		return
	}
	amount, err := strconv.ParseFloat(form.Get("Amount"), 64)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"code": codeMissingData})
		return
	}

	rawData := form.Get("Data")
	if rawData == "" {
		s.logger.Warn("Payment webhook without data block ", "transaction ", transactionID)
		c.JSON(http.StatusOK, gin.H{"code": codeMissingData})
		return
	}
	var data webhookData
	if err := json.Unmarshal([]byte(rawData), &data); err != nil {
		s.logger.Warn("Payment webhook with invalid data block ", "transaction ", transactionID, "error ", err)
		c.JSON(http.StatusOK, gin.H{"code": codeMissingData})
		return
	}
	if data.UserTelegramID == 0 || data.Product == "" {
		c.JSON(http.StatusOK, gin.H{"code": codeMissingData})
		return
	}

	event := &models.PaymentEvent{
		UserTelegramID:        data.UserTelegramID,
		TariffID:              data.TariffID,
		Product:               models.PaymentProduct(data.Product),
		Amount:                int64(amount),
		TransactionID:         transactionID,
		TrackingUsername:      data.TrackingUsername,
		GatewaySubscriptionID: form.Get("SubscriptionId"),
	}

	if err := s.payments.Apply(c.Request.Context(), event); err != nil {
		switch {
		case errors.Is(err, models.ErrAmountMismatch):
			c.JSON(http.StatusOK, gin.H{"code": codeAmountMismatch})
		case errors.Is(err, models.ErrNotFound):
			c.JSON(http.StatusOK, gin.H{"code": codeNotFound})
		default:
			s.logger.Error("Failed to apply payment ", "transaction ", transactionID, "error ", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply payment"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": codeOK})
}

// listTariffs serves the plan catalog for the paywall page.
func (s *HTTPServer) listTariffs(c *gin.Context) {
	tariffs, err := s.payments.Tariffs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tariffs"})
		return
	}
	c.JSON(http.StatusOK, tariffs)
}

// listSubscriptions returns a user's active subscriptions.
func (s *HTTPServer) listSubscriptions(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	subs, err := s.entitlement.ActiveSubscriptions(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list subscriptions"})
		return
	}
	c.JSON(http.StatusOK, subs)
}

// reportReady is the provider's callback when a requested report finished
// collecting. It forwards the fact to the chat layer.
func (s *HTTPServer) reportReady(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram id"})
		return
	}
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	if s.notifier != nil {
		s.notifier.ReportReady(c.Request.Context(), userID, req.Username)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
