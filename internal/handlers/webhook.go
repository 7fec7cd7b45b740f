package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"studyai-backend/internal/logger"
	"studyai-backend/internal/models"
	"studyai-backend/internal/services"
)

const maxWebhookBody = 1 << 20

type webhookProcessor interface {
	Process(ctx context.Context, body []byte, signature, eventID string) (*models.UserPlan, error)
}

// WebhookHandler is the payment gateway's callback. Responses are plain text.
type WebhookHandler struct {
	processor webhookProcessor
	log       *logger.Logger
}

func NewWebhookHandler(processor webhookProcessor, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, log: log}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeText(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	eventID := r.Header.Get("X-Razorpay-Event-Id")
	log := h.log.With("event_id", eventID, "request_id", r.Header.Get("X-Request-ID"))

	record, err := h.processor.Process(r.Context(), body, r.Header.Get("X-Razorpay-Signature"), eventID)
	if err != nil {
		var werr *services.WebhookError
		if !errors.As(err, &werr) {
			log.Error("webhook errored", "error", err)
			writeText(w, http.StatusInternalServerError, "Internal error")
			return
		}
		switch {
		case werr.Status >= 500:
			log.Error("webhook errored", "status", werr.Status, "error", werr.Message)
		case werr.Status >= 400:
			log.Warn("webhook rejected", "status", werr.Status, "reason", werr.Message)
		default:
			log.Info("webhook duplicate", "reason", werr.Message)
		}
		writeText(w, werr.Status, werr.Message)
		return
	}

	log.Info("webhook applied", "user_id", record.UserID, "plan", record.Plan, "payment_id", record.RazorpayPaymentID)
	writeText(w, http.StatusOK, "OK")
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
