package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"studyai-backend/internal/models"
)

const (
	ModalPricing = "pricing"
	ModalSave    = "save"
	ModalHistory = "history"
)

func newWorkspace(userID string) *models.Workspace {
	return &models.Workspace{
		UserID:         userID,
		FlashcardCount: DefaultItemCount,
		MCQCount:       DefaultItemCount,
		Result:         models.EmptyStudyResult(),
		Revealed:       []bool{},
		MCQAnswers:     []*string{},
		MCQFeedback:    []*bool{},
		UploadedFiles:  []models.UploadedFile{},
		MediaFiles:     []models.UploadedFile{},
	}
}

func setInputs(ws *models.Workspace, topic *string, flashcards, mcqs *int) {
	if topic != nil {
		ws.Topic = *topic
	}
	if flashcards != nil {
		ws.FlashcardCount = ClampCount(*flashcards)
	}
	if mcqs != nil {
		ws.MCQCount = ClampCount(*mcqs)
	}
}

// resetInteraction clears per-item state ahead of a new result.
func resetInteraction(ws *models.Workspace) {
	ws.Error = nil
	ws.Revealed = []bool{}
	ws.MCQAnswers = []*string{}
	ws.MCQFeedback = []*bool{}
	ws.ActiveCard = 0
}

// applyResult installs a result and sizes the per-item state to match it.
func applyResult(ws *models.Workspace, result models.StudyResult) {
	result.Normalize()
	ws.Result = result
	ws.Error = nil
	ws.Revealed = make([]bool, len(result.Flashcards))
	ws.MCQAnswers = make([]*string, len(result.MCQs))
	ws.MCQFeedback = make([]*bool, len(result.MCQs))
	ws.ActiveCard = 0
}

func failGeneration(ws *models.Workspace, err error) {
	var msg string
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "Generation timed out. Please try again."
	case errors.Is(err, context.Canceled):
		msg = "Generation was cancelled."
	default:
		msg = err.Error()
	}
	if msg == "" {
		msg = "Failed to generate content."
	}
	ws.Error = &msg
	ws.Result = models.EmptyStudyResult()
	ws.Revealed = []bool{}
	ws.MCQAnswers = []*string{}
	ws.MCQFeedback = []*bool{}
}

func toggleReveal(ws *models.Workspace, idx int) error {
	if idx < 0 || idx >= len(ws.Revealed) {
		return fieldError("index", fmt.Sprintf("flashcard %d does not exist", idx))
	}
	ws.Revealed[idx] = !ws.Revealed[idx]
	return nil
}

func setActiveCard(ws *models.Workspace, idx int) {
	n := len(ws.Result.Flashcards)
	if n == 0 {
		ws.ActiveCard = 0
		return
	}
	ws.ActiveCard = max(0, min(n-1, idx))
}

// selectOption records the first answer for a question. Later selections for
// the same question are ignored and reported as not applied. Correctness is an
// exact string comparison.
func selectOption(ws *models.Workspace, idx int, option string) (bool, error) {
	if idx < 0 || idx >= len(ws.Result.MCQs) || idx >= len(ws.MCQFeedback) {
		return false, fieldError("index", fmt.Sprintf("question %d does not exist", idx))
	}
	if ws.MCQFeedback[idx] != nil {
		return false, nil
	}

	correct := ws.Result.MCQs[idx].Answer == option
	ws.MCQAnswers[idx] = &option
	ws.MCQFeedback[idx] = &correct
	return true, nil
}

// addFile appends f unless a file with the same checksum is already listed.
func addFile(ws *models.Workspace, f models.UploadedFile) bool {
	if _, dup := findByChecksum(ws, f.Kind, f.Checksum); dup {
		return false
	}
	if f.Kind == models.UploadMedia {
		ws.MediaFiles = append(ws.MediaFiles, f)
	} else {
		ws.UploadedFiles = append(ws.UploadedFiles, f)
	}
	return true
}

func findByChecksum(ws *models.Workspace, kind models.UploadKind, checksum string) (models.UploadedFile, bool) {
	list := ws.UploadedFiles
	if kind == models.UploadMedia {
		list = ws.MediaFiles
	}
	for _, f := range list {
		if f.Checksum == checksum {
			return f, true
		}
	}
	return models.UploadedFile{}, false
}

func removeFile(ws *models.Workspace, id uuid.UUID) (models.UploadedFile, bool) {
	for _, list := range []*[]models.UploadedFile{&ws.UploadedFiles, &ws.MediaFiles} {
		for i, f := range *list {
			if f.ID == id {
				*list = append((*list)[:i], (*list)[i+1:]...)
				return f, true
			}
		}
	}
	return models.UploadedFile{}, false
}

func findFile(ws *models.Workspace, id uuid.UUID) (models.UploadedFile, bool) {
	for _, list := range [][]models.UploadedFile{ws.UploadedFiles, ws.MediaFiles} {
		for _, f := range list {
			if f.ID == id {
				return f, true
			}
		}
	}
	return models.UploadedFile{}, false
}

// setModal returns whether the change should refresh the saved-session list.
func setModal(ws *models.Workspace, name string, open bool) (bool, error) {
	switch strings.ToLower(name) {
	case ModalPricing:
		ws.Modals.Pricing = open
		return false, nil
	case ModalSave:
		ws.Modals.Save = open
		return true, nil
	case ModalHistory:
		ws.Modals.History = open
		return true, nil
	default:
		return false, fieldError("name", "modal must be pricing, save, or history")
	}
}
