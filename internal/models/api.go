package models

import "github.com/google/uuid"

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type GenerationEvent struct {
	Topic      string     `json:"topic"`
	SessionID  *uuid.UUID `json:"session_id,omitempty"`
	Flashcards int        `json:"flashcards"`
	MCQs       int        `json:"mcqs"`
	Error      string     `json:"error,omitempty"`
}

type PlanUpdatedEvent struct {
	Plan      Plan   `json:"plan"`
	PaymentID string `json:"payment_id"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
