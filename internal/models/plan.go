package models

import (
	"strings"
	"time"
)

type Plan string

const (
	PlanFree    Plan = "Free"
	PlanPro     Plan = "Pro"
	PlanPremium Plan = "Premium"
)

// ParsePlan accepts the tier names case-insensitively.
func ParsePlan(s string) (Plan, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return PlanFree, true
	case "pro":
		return PlanPro, true
	case "premium":
		return PlanPremium, true
	default:
		return "", false
	}
}

type UserPlan struct {
	UserID            string    `json:"user_id"`
	Plan              Plan      `json:"plan"`
	RazorpayPaymentID string    `json:"razorpay_payment_id"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type PlanStatus struct {
	Plan                 Plan `json:"plan"`
	GenerationsUsed      int  `json:"generations_used"`
	GenerationsRemaining *int `json:"generations_remaining"` // nil when unlimited
}
