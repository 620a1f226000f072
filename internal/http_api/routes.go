package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.POST("/api/v1/payments/webhook", s.paymentWebhook)
	s.router.GET("/api/v1/tariffs", s.listTariffs)
	s.router.GET("/api/v1/subscriptions", s.listSubscriptions)
	s.router.POST("/api/v1/users/:telegram_id/report", s.reportReady)
}
