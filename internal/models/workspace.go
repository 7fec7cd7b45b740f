package models

import (
	"time"

	"github.com/google/uuid"
)

type UploadKind string

const (
	UploadDocument UploadKind = "document"
	UploadMedia    UploadKind = "media"
)

// UploadedFile lives only as long as the workspace that references it.
type UploadedFile struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	MimeType   string     `json:"mime_type"`
	Size       int64      `json:"size"`
	Kind       UploadKind `json:"kind"`
	Checksum   string     `json:"checksum"`
	Preview    string     `json:"preview,omitempty"`
	URL        string     `json:"url"`
	UploadedAt time.Time  `json:"uploaded_at"`
}

type VideoEmbed struct {
	URL             string `json:"url"`
	VideoID         string `json:"video_id"`
	EmbedURL        string `json:"embed_url"`
	Title           string `json:"title,omitempty"`
	Author          string `json:"author,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

type ModalState struct {
	Pricing bool `json:"pricing"`
	Save    bool `json:"save"`
	History bool `json:"history"`
}

// Workspace is the per-user interaction state around one study result.
// MCQAnswers and MCQFeedback use nil for "not answered yet".
type Workspace struct {
	UserID         string         `json:"user_id"`
	Topic          string         `json:"topic"`
	FlashcardCount int            `json:"flashcard_count"`
	MCQCount       int            `json:"mcq_count"`
	Loading        bool           `json:"loading"`
	Error          *string        `json:"error"`
	Result         StudyResult    `json:"result"`
	Revealed       []bool         `json:"revealed"`
	ActiveCard     int            `json:"active_card"`
	MCQAnswers     []*string      `json:"mcq_answers"`
	MCQFeedback    []*bool        `json:"mcq_feedback"`
	UploadedFiles  []UploadedFile `json:"uploaded_files"`
	MediaFiles     []UploadedFile `json:"media_files"`
	Video          *VideoEmbed    `json:"video"`
	Modals         ModalState     `json:"modals"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type UpdateInputsRequest struct {
	Topic          *string `json:"topic"`
	FlashcardCount *int    `json:"flashcard_count"`
	MCQCount       *int    `json:"mcq_count"`
}

type SelectOptionRequest struct {
	Option string `json:"option"`
}

type SetActiveCardRequest struct {
	Index int `json:"index"`
}

type SetVideoRequest struct {
	URL string `json:"url"`
}

type SetModalRequest struct {
	Open bool `json:"open"`
}
