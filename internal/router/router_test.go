package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	razorpay "github.com/razorpay/razorpay-go"

	"studyai-backend/internal/config"
	"studyai-backend/internal/handlers"
	"studyai-backend/internal/logger"
	"studyai-backend/internal/middleware"
	"studyai-backend/internal/services"
	"studyai-backend/internal/websocket"
)

func newTestRouter() http.Handler {
	log := logger.Nop()
	jwtAuth := middleware.NewJWTAuth("secret")
	payments := services.NewPaymentService(razorpay.NewClient("rzp_test", "secret"), config.DefaultPlanCatalog(), "rzp_test", log)

	return New(
		jwtAuth,
		handlers.NewStudyHandler(nil, 1<<20, log),
		handlers.NewPaymentHandler(payments, log),
		handlers.NewWebhookHandler(services.NewWebhookProcessor(nil, nil, nil, "whsec", log), log),
		websocket.NewHub(nil, jwtAuth, "*", log),
		"http://localhost:5173",
		log,
	)
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/v1/payments/plans", http.StatusOK},
		{http.MethodGet, "/webhooks/razorpay", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/plan", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/workspace", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/workspace/generate", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/sessions", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/payments/checkout", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/ws", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if rr.Header().Get(middleware.RequestIDHeader) == "" {
				t.Fatalf("every response should carry a request id")
			}
		})
	}
}

func TestRouter_PlansListsCatalogue(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/payments/plans", nil))

	for _, name := range []string{`"Free"`, `"Pro"`, `"Premium"`} {
		if !strings.Contains(rr.Body.String(), name) {
			t.Fatalf("plans response missing %s: %s", name, rr.Body.String())
		}
	}
}
