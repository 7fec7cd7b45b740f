package services

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/google/uuid"

	"studyai-backend/internal/models"
	"studyai-backend/internal/repository"
)

// Workspace returns the caller's workspace, starting a fresh one if none is stored.
func (s *StudyService) Workspace(ctx context.Context, userID string) (*models.Workspace, error) {
	ws, err := s.workspaces.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return newWorkspace(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// mutate loads the workspace, applies fn and stores the result.
func (s *StudyService) mutate(ctx context.Context, userID string, fn func(ws *models.Workspace) error) (*models.Workspace, error) {
	ws, err := s.Workspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(ws); err != nil {
		return nil, err
	}
	if err := s.workspaces.Save(ctx, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *StudyService) UpdateInputs(ctx context.Context, userID string, req models.UpdateInputsRequest) (*models.Workspace, error) {
	return s.mutate(ctx, userID, func(ws *models.Workspace) error {
		setInputs(ws, req.Topic, req.FlashcardCount, req.MCQCount)
		return nil
	})
}

func (s *StudyService) ToggleReveal(ctx context.Context, userID string, idx int) (*models.Workspace, error) {
	return s.mutate(ctx, userID, func(ws *models.Workspace) error {
		return toggleReveal(ws, idx)
	})
}

func (s *StudyService) SetActiveCard(ctx context.Context, userID string, idx int) (*models.Workspace, error) {
	return s.mutate(ctx, userID, func(ws *models.Workspace) error {
		setActiveCard(ws, idx)
		return nil
	})
}

// SelectOption records an answer. A repeat selection for an answered question
// leaves the workspace as it was.
func (s *StudyService) SelectOption(ctx context.Context, userID string, idx int, option string) (*models.Workspace, error) {
	ws, err := s.Workspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	applied, err := selectOption(ws, idx, option)
	if err != nil {
		return nil, err
	}
	if !applied {
		return ws, nil
	}
	if err := s.workspaces.Save(ctx, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// AddFile stores an upload and lists it on the workspace. Re-uploading
// content that is already listed is a no-op and returns the existing entry.
func (s *StudyService) AddFile(ctx context.Context, userID string, kind models.UploadKind, filename, mimeType string, r io.Reader) (*models.Workspace, models.UploadedFile, error) {
	ws, err := s.Workspace(ctx, userID)
	if err != nil {
		return nil, models.UploadedFile{}, err
	}

	f, err := s.uploads.Save(userID, kind, filename, mimeType, r)
	if err != nil {
		return nil, models.UploadedFile{}, err
	}

	if !addFile(ws, f) {
		if err := s.uploads.Remove(userID, f); err != nil {
			s.log.Warn("failed to remove duplicate upload", "user_id", userID, "error", err)
		}
		if existing, ok := findByChecksum(ws, f.Kind, f.Checksum); ok {
			return ws, existing, nil
		}
		return ws, f, nil
	}

	if err := s.workspaces.Save(ctx, ws); err != nil {
		_ = s.uploads.Remove(userID, f)
		return nil, models.UploadedFile{}, err
	}
	s.log.Info("file uploaded", "user_id", userID, "kind", f.Kind, "size", f.Size)
	return ws, f, nil
}

// OpenFile returns the stored bytes of a listed upload. The caller closes the file.
func (s *StudyService) OpenFile(ctx context.Context, userID string, id uuid.UUID) (models.UploadedFile, *os.File, error) {
	ws, err := s.Workspace(ctx, userID)
	if err != nil {
		return models.UploadedFile{}, nil, err
	}
	f, ok := findFile(ws, id)
	if !ok {
		return models.UploadedFile{}, nil, &NotFoundError{Message: "File not found"}
	}
	fh, err := s.uploads.Open(userID, f)
	if errors.Is(err, os.ErrNotExist) {
		return models.UploadedFile{}, nil, &NotFoundError{Message: "File not found"}
	}
	if err != nil {
		return models.UploadedFile{}, nil, err
	}
	return f, fh, nil
}

func (s *StudyService) RemoveFile(ctx context.Context, userID string, id uuid.UUID) (*models.Workspace, error) {
	var removed models.UploadedFile
	ws, err := s.mutate(ctx, userID, func(ws *models.Workspace) error {
		f, ok := removeFile(ws, id)
		if !ok {
			return &NotFoundError{Message: "File not found"}
		}
		removed = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.uploads.Remove(userID, removed); err != nil {
		s.log.Warn("failed to remove upload", "user_id", userID, "file_id", id, "error", err)
	}
	return ws, nil
}

// SetVideo embeds a YouTube link. An unrecognised link leaves the workspace untouched.
func (s *StudyService) SetVideo(ctx context.Context, userID, url string) (*models.Workspace, error) {
	video, err := s.videos.Resolve(ctx, url)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, func(ws *models.Workspace) error {
		ws.Video = video
		return nil
	})
}

func (s *StudyService) RemoveVideo(ctx context.Context, userID string) (*models.Workspace, error) {
	return s.mutate(ctx, userID, func(ws *models.Workspace) error {
		ws.Video = nil
		return nil
	})
}

// SetModal toggles a dialog. Save and history dialogs also return the
// caller's saved sessions; sessions is nil otherwise.
func (s *StudyService) SetModal(ctx context.Context, userID, name string, open bool) (*models.Workspace, []*models.StudySession, error) {
	var refresh bool
	ws, err := s.mutate(ctx, userID, func(ws *models.Workspace) error {
		var err error
		refresh, err = setModal(ws, name, open)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if !refresh {
		return ws, nil, nil
	}

	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return ws, sessions, nil
}
