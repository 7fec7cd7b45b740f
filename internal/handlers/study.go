package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyai-backend/internal/logger"
	"studyai-backend/internal/middleware"
	"studyai-backend/internal/models"
)

type studyService interface {
	Workspace(ctx context.Context, userID string) (*models.Workspace, error)
	Reset(ctx context.Context, userID string) error
	UpdateInputs(ctx context.Context, userID string, req models.UpdateInputsRequest) (*models.Workspace, error)
	Generate(ctx context.Context, userID, email string) (*models.Workspace, error)
	ToggleReveal(ctx context.Context, userID string, idx int) (*models.Workspace, error)
	SetActiveCard(ctx context.Context, userID string, idx int) (*models.Workspace, error)
	SelectOption(ctx context.Context, userID string, idx int, option string) (*models.Workspace, error)
	AddFile(ctx context.Context, userID string, kind models.UploadKind, filename, mimeType string, r io.Reader) (*models.Workspace, models.UploadedFile, error)
	OpenFile(ctx context.Context, userID string, id uuid.UUID) (models.UploadedFile, *os.File, error)
	RemoveFile(ctx context.Context, userID string, id uuid.UUID) (*models.Workspace, error)
	SetVideo(ctx context.Context, userID, url string) (*models.Workspace, error)
	RemoveVideo(ctx context.Context, userID string) (*models.Workspace, error)
	SetModal(ctx context.Context, userID, name string, open bool) (*models.Workspace, []*models.StudySession, error)
	Save(ctx context.Context, userID, email, name string) (*models.StudySession, error)
	Load(ctx context.Context, userID string, id uuid.UUID) (*models.Workspace, error)
	ListSessions(ctx context.Context, userID string) ([]*models.StudySession, error)
	GetSession(ctx context.Context, userID string, id uuid.UUID) (*models.StudySession, error)
	DeleteSession(ctx context.Context, userID string, id uuid.UUID) error
	PlanStatus(ctx context.Context, userID string) (*models.PlanStatus, error)
}

type StudyHandler struct {
	svc            studyService
	maxUploadBytes int64
	log            *logger.Logger
}

func NewStudyHandler(svc studyService, maxUploadBytes int64, log *logger.Logger) *StudyHandler {
	return &StudyHandler{svc: svc, maxUploadBytes: maxUploadBytes, log: log}
}

func (h *StudyHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Debug("request failed", "path", r.URL.Path, "error", err)
	handleServiceError(w, r, err)
}

func (h *StudyHandler) respondWorkspace(w http.ResponseWriter, r *http.Request, ws *models.Workspace, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"workspace": ws})
}

func (h *StudyHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.PlanStatus(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *StudyHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := h.svc.Workspace(r.Context(), middleware.GetUserID(r.Context()))
	h.respondWorkspace(w, r, ws, err)
}

func (h *StudyHandler) ResetWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reset(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Workspace cleared"})
}

func (h *StudyHandler) UpdateInputs(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateInputsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ws, err := h.svc.UpdateInputs(r.Context(), middleware.GetUserID(r.Context()), req)
	h.respondWorkspace(w, r, ws, err)
}

func (h *StudyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws, err := h.svc.Generate(ctx, middleware.GetUserID(ctx), middleware.GetUserEmail(ctx))
	h.respondWorkspace(w, r, ws, err)
}

func (h *StudyHandler) RevealFlashcard(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	ws, err := h.svc.ToggleReveal(r.Context(), middleware.GetUserID(r.Context()), idx)
	h.respondWorkspace(w, r, ws, err)
}

func (h *StudyHandler) SetActiveCard(w http.ResponseWriter, r *http.Request) {
	var req models.SetActiveCardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ws, err := h.svc.SetActiveCard(r.Context(), middleware.GetUserID(r.Context()), req.Index)
	h.respondWorkspace(w, r, ws, err)
}

func (h *StudyHandler) AnswerMCQ(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req models.SelectOptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ws, err := h.svc.SelectOption(r.Context(), middleware.GetUserID(r.Context()), idx, req.Option)
	h.respondWorkspace(w, r, ws, err)
}

func (h *StudyHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", fmt.Sprintf("File exceeds %d MB limit or is malformed", h.maxUploadBytes/(1024*1024)), r))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Missing file", r))
		return
	}
	defer file.Close()

	kind := models.UploadKind(r.FormValue("kind"))
	if kind == "" {
		kind = models.UploadDocument
	}

	ws, f, err := h.svc.AddFile(r.Context(), middleware.GetUserID(r.Context()), kind, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"workspace": ws,
		"file":      f,
	})
}

func (h *StudyHandler) GetFileContent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid file ID", r))
		return
	}

	f, fh, err := h.svc.OpenFile(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer fh.Close()

	if f.MimeType != "" {
		w.Header().Set("Content-Type", f.MimeType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", f.Name))
	http.ServeContent(w, r, f.Name, f.UploadedAt, fh)
}

func (h *StudyHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid file ID", r))
		return
	}
	ws, err := h.svc.RemoveFile(r.Context(), middleware.GetUserID(r.Context()), id)
	h.respondWorkspace(w, r, ws, err)
}

func (h *StudyHandler) SetVideo(w http.ResponseWriter, r *http.Request) {
	var req models.SetVideoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ws, err := h.svc.SetVideo(r.Context(), middleware.GetUserID(r.Context()), req.URL)
	h.respondWorkspace(w, r, ws, err)
}

func (h *StudyHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	ws, err := h.svc.RemoveVideo(r.Context(), middleware.GetUserID(r.Context()))
	h.respondWorkspace(w, r, ws, err)
}

func (h *StudyHandler) SetModal(w http.ResponseWriter, r *http.Request) {
	var req models.SetModalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ws, sessions, err := h.svc.SetModal(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "name"), req.Open)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := map[string]interface{}{"workspace": ws}
	if sessions != nil {
		resp["sessions"] = sessions
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StudyHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req models.SaveSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	session, err := h.svc.Save(ctx, middleware.GetUserID(ctx), middleware.GetUserEmail(ctx), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"session": session})
}

func (h *StudyHandler) Load(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}
	ws, err := h.svc.Load(r.Context(), middleware.GetUserID(r.Context()), id)
	h.respondWorkspace(w, r, ws, err)
}

func (h *StudyHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.ListSessions(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.log.Error("failed to list sessions", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list sessions", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *StudyHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}
	session, err := h.svc.GetSession(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *StudyHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}
	if err := h.svc.DeleteSession(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session deleted"})
}
