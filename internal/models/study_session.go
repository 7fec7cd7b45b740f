package models

import (
	"time"

	"github.com/google/uuid"
)

// StudySession is a saved snapshot of a generated result. Rows are never updated.
type StudySession struct {
	ID        uuid.UUID   `json:"id"`
	UserID    string      `json:"user_id"`
	UserEmail string      `json:"user_email"`
	Topic     string      `json:"topic"`
	Result    StudyResult `json:"result"`
	CreatedAt time.Time   `json:"created_at"`
}

type SaveSessionRequest struct {
	Name string `json:"name"`
}
