package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	razorpay "github.com/razorpay/razorpay-go"

	"studyai-backend/internal/config"
	"studyai-backend/internal/logger"
	"studyai-backend/internal/models"
)

// razorpayResource is the Create half of the gateway's order and subscription
// resources.
type razorpayResource interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type PaymentService struct {
	orders        razorpayResource
	subscriptions razorpayResource
	catalog       config.PlanCatalog
	keyID         string
	log           *logger.Logger
}

func NewPaymentService(client *razorpay.Client, catalog config.PlanCatalog, keyID string, log *logger.Logger) *PaymentService {
	return &PaymentService{
		orders:        client.Order,
		subscriptions: client.Subscription,
		catalog:       catalog,
		keyID:         keyID,
		log:           log,
	}
}

func (s *PaymentService) Catalog() config.PlanCatalog {
	return s.catalog
}

// Checkout creates a gateway order for plan and returns the options the
// checkout widget is opened with. The order notes carry the user and plan so
// the webhook can attribute the captured payment.
func (s *PaymentService) Checkout(ctx context.Context, userID, email, planName string) (*models.CheckoutConfig, error) {
	spec, ok := s.catalog.Find(planName)
	plan, known := models.ParsePlan(planName)
	if !ok || !known {
		return nil, fieldError("plan", "Unknown plan")
	}
	if spec.Amount <= 0 {
		return nil, fieldError("plan", "The Free plan does not require payment")
	}

	amount := spec.Amount * 100
	notes := map[string]string{
		"user_id": userID,
		"plan":    string(plan),
	}

	order, err := s.orders.Create(map[string]interface{}{
		"amount":   amount,
		"currency": spec.Currency,
		"receipt":  "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
		"notes":    notes,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	orderID, _ := order["id"].(string)
	if orderID == "" {
		return nil, fmt.Errorf("create order: response has no id")
	}

	s.log.Info("checkout order created", "user_id", userID, "plan", plan, "order_id", orderID, "amount", amount)

	return &models.CheckoutConfig{
		Key:         s.keyID,
		Amount:      amount,
		Currency:    spec.Currency,
		Name:        s.catalog.CheckoutName,
		Description: "Upgrade to " + string(plan),
		OrderID:     orderID,
		Prefill:     models.CheckoutPrefill{Email: email},
		Notes:       notes,
		Theme:       models.CheckoutTheme{Color: s.catalog.ThemeColor},
	}, nil
}

// CreateSubscription starts a monthly subscription for a gateway plan id. A
// catalogue plan name is accepted too when it has a gateway plan id configured.
func (s *PaymentService) CreateSubscription(ctx context.Context, planID string) (string, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return "", fieldError("planId", "planId is required")
	}
	if spec, ok := s.catalog.Find(planID); ok && spec.RazorpayPlanID != "" {
		planID = spec.RazorpayPlanID
	}

	sub, err := s.subscriptions.Create(map[string]interface{}{
		"plan_id":         planID,
		"customer_notify": 1,
		"total_count":     12,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("create subscription: %w", err)
	}
	id, _ := sub["id"].(string)
	if id == "" {
		return "", fmt.Errorf("create subscription: response has no id")
	}
	return id, nil
}
