package models

import "encoding/json"

type CheckoutRequest struct {
	Plan string `json:"plan"`
}

// CheckoutConfig is handed to the gateway's checkout widget as-is.
type CheckoutConfig struct {
	Key         string            `json:"key"`
	Amount      int64             `json:"amount"` // minor units (paise)
	Currency    string            `json:"currency"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	OrderID     string            `json:"order_id"`
	Prefill     CheckoutPrefill   `json:"prefill"`
	Notes       map[string]string `json:"notes"`
	Theme       CheckoutTheme     `json:"theme"`
}

type CheckoutPrefill struct {
	Email string `json:"email"`
}

type CheckoutTheme struct {
	Color string `json:"color"`
}

type CreateSubscriptionRequest struct {
	PlanID string `json:"planId"`
}

type CreateSubscriptionResponse struct {
	SubscriptionID string `json:"subscriptionId"`
}

// PaymentWebhook is the subset of a gateway webhook delivery that is read.
type PaymentWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type PaymentEntity struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Amount   int64           `json:"amount"`
	Currency string          `json:"currency"`
	OrderID  string          `json:"order_id"`
	Email    string          `json:"email"`
	Notes    json.RawMessage `json:"notes"` // object, or [] when empty
}

type PaymentNotes struct {
	UserID string `json:"user_id"`
	Plan   string `json:"plan"`
}

// DecodeNotes tolerates the empty-array form the gateway sends for no notes.
func (e PaymentEntity) DecodeNotes() PaymentNotes {
	var notes PaymentNotes
	if len(e.Notes) == 0 {
		return notes
	}
	_ = json.Unmarshal(e.Notes, &notes)
	return notes
}
