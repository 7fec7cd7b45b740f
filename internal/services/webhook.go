package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/razorpay/razorpay-go/utils"
	"github.com/redis/go-redis/v9"

	"studyai-backend/internal/logger"
	"studyai-backend/internal/models"
)

const webhookReplayWindow = 24 * time.Hour

// WebhookError is a rejected delivery. Message is sent back as plain text.
type WebhookError struct {
	Status  int
	Message string
}

func (e *WebhookError) Error() string { return e.Message }

func rejectDelivery(message string) *WebhookError {
	return &WebhookError{Status: http.StatusBadRequest, Message: message}
}

// ErrAlreadyProcessed is returned for a delivery whose event id was applied before.
var ErrAlreadyProcessed = &WebhookError{Status: http.StatusOK, Message: "Already processed"}

type planWriter interface {
	Upsert(ctx context.Context, p *models.UserPlan) error
}

type eventDeduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string)
}

// RedisEventDeduper remembers applied event ids for a day.
type RedisEventDeduper struct {
	redis *redis.Client
}

func NewRedisEventDeduper(redisClient *redis.Client) *RedisEventDeduper {
	return &RedisEventDeduper{redis: redisClient}
}

func webhookEventKey(eventID string) string {
	return "webhook_event:" + eventID
}

func (d *RedisEventDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	return d.redis.SetNX(ctx, webhookEventKey(eventID), time.Now().Unix(), webhookReplayWindow).Result()
}

func (d *RedisEventDeduper) Release(ctx context.Context, eventID string) {
	d.redis.Del(ctx, webhookEventKey(eventID))
}

// WebhookProcessor applies captured payments to the plan table. It is the only
// writer of plan records.
type WebhookProcessor struct {
	plans  planWriter
	dedupe eventDeduper
	events eventPublisher
	secret string
	now    func() time.Time
	log    *logger.Logger
}

// NewWebhookProcessor builds a processor. dedupe and events may be nil when
// the deployment has no Redis.
func NewWebhookProcessor(plans planWriter, dedupe eventDeduper, events eventPublisher, secret string, log *logger.Logger) *WebhookProcessor {
	return &WebhookProcessor{
		plans:  plans,
		dedupe: dedupe,
		events: events,
		secret: secret,
		now:    time.Now,
		log:    log,
	}
}

// Process verifies and applies one delivery. Every rejection is a
// *WebhookError and leaves the plan table untouched.
func (p *WebhookProcessor) Process(ctx context.Context, body []byte, signature, eventID string) (*models.UserPlan, error) {
	if signature == "" || !utils.VerifyWebhookSignature(string(body), signature, p.secret) {
		return nil, rejectDelivery("Invalid signature")
	}

	var hook models.PaymentWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, rejectDelivery("Invalid JSON payload")
	}

	entity := hook.Payload.Payment.Entity
	notes := entity.DecodeNotes()
	if notes.UserID == "" || notes.Plan == "" {
		return nil, rejectDelivery("Missing user_id or plan in notes")
	}
	if entity.Status != "captured" {
		return nil, rejectDelivery("Payment not captured")
	}
	plan, ok := models.ParsePlan(notes.Plan)
	if !ok {
		return nil, rejectDelivery("Unknown plan")
	}

	claimed := false
	if p.dedupe != nil && eventID != "" {
		fresh, err := p.dedupe.Claim(ctx, eventID)
		if err != nil {
			p.log.Warn("webhook replay check unavailable", "event_id", eventID, "error", err)
		} else if !fresh {
			return nil, ErrAlreadyProcessed
		} else {
			claimed = true
		}
	}

	record := &models.UserPlan{
		UserID:            notes.UserID,
		Plan:              plan,
		RazorpayPaymentID: entity.ID,
		UpdatedAt:         p.now().UTC(),
	}
	if err := p.plans.Upsert(ctx, record); err != nil {
		if claimed {
			p.dedupe.Release(ctx, eventID)
		}
		return nil, &WebhookError{
			Status:  http.StatusInternalServerError,
			Message: fmt.Sprintf("Database error: %s", err.Error()),
		}
	}

	if p.events != nil {
		msg := models.WSMessage{
			Type:    EventPlanUpdated,
			Payload: models.PlanUpdatedEvent{Plan: plan, PaymentID: entity.ID},
		}
		if err := p.events.PublishUpdate(ctx, record.UserID, msg); err != nil {
			p.log.Warn("failed to publish plan update", "user_id", record.UserID, "error", err)
		}
	}
	return record, nil
}
