package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"studyai-backend/internal/config"
	"studyai-backend/internal/logger"
	"studyai-backend/internal/middleware"
	"studyai-backend/internal/models"
)

type paymentService interface {
	Catalog() config.PlanCatalog
	Checkout(ctx context.Context, userID, email, planName string) (*models.CheckoutConfig, error)
	CreateSubscription(ctx context.Context, planID string) (string, error)
}

type PaymentHandler struct {
	payments paymentService
	log      *logger.Logger
}

func NewPaymentHandler(payments paymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log}
}

func (h *PaymentHandler) Plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": h.payments.Catalog().Plans})
}

func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	cfg, err := h.payments.Checkout(ctx, middleware.GetUserID(ctx), middleware.GetUserEmail(ctx), req.Plan)
	if err != nil {
		h.log.Warn("checkout failed", "plan", req.Plan, "error", err)
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"checkout": cfg})
}

func (h *PaymentHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.payments.CreateSubscription(r.Context(), req.PlanID)
	if err != nil {
		h.log.Warn("subscription failed", "plan_id", req.PlanID, "error", err)
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.CreateSubscriptionResponse{SubscriptionID: id})
}

// CreateSubscriptionStub serves the unauthenticated legacy endpoint. Every
// failure is a 500 with a bare {"error": "..."} body.
func (h *PaymentHandler) CreateSubscriptionStub(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Invalid request body"})
		return
	}

	id, err := h.payments.CreateSubscription(r.Context(), req.PlanID)
	if err != nil {
		h.log.Error("subscription failed", "plan_id", req.PlanID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": rootMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, models.CreateSubscriptionResponse{SubscriptionID: id})
}

// rootMessage returns the innermost error text, which for gateway failures is
// the message Razorpay sent back.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
