package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyai-backend/internal/config"
	"studyai-backend/internal/logger"
	"studyai-backend/internal/models"
	"studyai-backend/internal/repository"
)

type sessionRepository interface {
	Create(ctx context.Context, s *models.StudySession) error
	ListByUser(ctx context.Context, userID string) ([]*models.StudySession, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error)
	Delete(ctx context.Context, id uuid.UUID, userID string) error
}

type planReader interface {
	GetPlan(ctx context.Context, userID string) models.Plan
}

type workspaceStore interface {
	Get(ctx context.Context, userID string) (*models.Workspace, error)
	Save(ctx context.Context, ws *models.Workspace) error
	Delete(ctx context.Context, userID string) error
	AcquireGenerationLock(ctx context.Context, userID string, ttl time.Duration) (string, error)
	ReleaseGenerationLock(ctx context.Context, userID, token string) error
}

type studyGenerator interface {
	Generate(ctx context.Context, topic string, flashcards, mcqs int) (*models.StudyResult, error)
}

type quotaCounter interface {
	Limit() int
	Used(ctx context.Context, userID string) (int, error)
	Increment(ctx context.Context, userID string) (int, error)
}

type eventPublisher interface {
	PublishUpdate(ctx context.Context, userID string, msg models.WSMessage) error
}

type uploadStorage interface {
	Save(userID string, kind models.UploadKind, filename, mimeType string, r io.Reader) (models.UploadedFile, error)
	Open(userID string, f models.UploadedFile) (*os.File, error)
	Remove(userID string, f models.UploadedFile) error
	RemoveAll(userID string) error
}

type videoResolver interface {
	Resolve(ctx context.Context, raw string) (*models.VideoEmbed, error)
}

// StudyService owns the per-user workspace and everything that changes it:
// generation, saved sessions, uploads and the embedded video.
type StudyService struct {
	sessions   sessionRepository
	plans      planReader
	catalog    config.PlanCatalog
	workspaces workspaceStore
	generator  studyGenerator
	quota      quotaCounter
	events     eventPublisher
	uploads    uploadStorage
	videos     videoResolver
	timeout    time.Duration
	log        *logger.Logger
}

func NewStudyService(
	sessions sessionRepository,
	plans planReader,
	catalog config.PlanCatalog,
	workspaces workspaceStore,
	generator studyGenerator,
	quota quotaCounter,
	events eventPublisher,
	uploads uploadStorage,
	videos videoResolver,
	timeout time.Duration,
	log *logger.Logger,
) *StudyService {
	return &StudyService{
		sessions:   sessions,
		plans:      plans,
		catalog:    catalog,
		workspaces: workspaces,
		generator:  generator,
		quota:      quota,
		events:     events,
		uploads:    uploads,
		videos:     videos,
		timeout:    timeout,
		log:        log,
	}
}

// PlanStatus reports the caller's plan as stored server side, with the Free
// quota applied.
func (s *StudyService) PlanStatus(ctx context.Context, userID string) (*models.PlanStatus, error) {
	plan := s.plans.GetPlan(ctx, userID)
	used, err := s.quota.Used(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &models.PlanStatus{Plan: plan, GenerationsUsed: used}
	if !s.catalog.Unlimited(string(plan)) {
		remaining := max(0, s.quota.Limit()-used)
		status.GenerationsRemaining = &remaining
	}
	return status, nil
}

// Generate produces a new study set for the workspace's current inputs.
// Generation failures are reported through the workspace error banner, not
// the returned error.
func (s *StudyService) Generate(ctx context.Context, userID, email string) (*models.Workspace, error) {
	ws, err := s.Workspace(ctx, userID)
	if err != nil {
		return nil, err
	}

	plan := s.plans.GetPlan(ctx, userID)
	unlimited := s.catalog.Unlimited(string(plan))
	if !unlimited {
		used, err := s.quota.Used(ctx, userID)
		if err != nil {
			return nil, err
		}
		if used >= s.quota.Limit() {
			return nil, &UpgradeRequiredError{Message: "Upgrade to Pro or Premium to generate more study content."}
		}
	}

	// Uploaded documents only unlock the form; their contents stay out of the prompt.
	topic := strings.TrimSpace(ws.Topic)
	if topic == "" && len(ws.UploadedFiles) == 0 {
		return nil, fieldError("topic", "Enter a topic or upload a document.")
	}

	lockToken, err := s.workspaces.AcquireGenerationLock(ctx, userID, s.lockTTL())
	if err != nil {
		return nil, fmt.Errorf("acquire generation lock: %w", err)
	}
	if lockToken == "" {
		return nil, &ConflictError{Message: "A generation is already in progress."}
	}
	defer func() {
		if err := s.workspaces.ReleaseGenerationLock(context.WithoutCancel(ctx), userID, lockToken); err != nil {
			s.log.Warn("failed to release generation lock", "user_id", userID, "error", err)
		}
	}()

	resetInteraction(ws)
	ws.Result = models.EmptyStudyResult()
	ws.Loading = true
	if err := s.workspaces.Save(ctx, ws); err != nil {
		return nil, err
	}

	genCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, genErr := s.generator.Generate(genCtx, topic, ws.FlashcardCount, ws.MCQCount)

	// The outcome is persisted even if the caller went away, so the stored
	// workspace never stays in the loading state.
	ctx = context.WithoutCancel(ctx)

	// Inputs may have changed while the model was working.
	if latest, err := s.workspaces.Get(ctx, userID); err == nil {
		ws = latest
	}
	ws.Loading = false

	if genErr != nil {
		s.log.Warn("generation failed", "user_id", userID, "plan", plan, "duration", time.Since(start), "error", genErr)
		failGeneration(ws, genErr)
		if err := s.workspaces.Save(ctx, ws); err != nil {
			return nil, err
		}
		s.publish(ctx, userID, EventGenerationFailed, models.GenerationEvent{Topic: ws.Topic, Error: genErr.Error()})
		return ws, nil
	}

	applyResult(ws, *result)

	session := &models.StudySession{
		UserID:    userID,
		UserEmail: email,
		Topic:     sessionTopic(ws),
		Result:    ws.Result,
	}
	var sessionID *uuid.UUID
	if err := s.sessions.Create(ctx, session); err != nil {
		s.log.Error("auto-save failed", "user_id", userID, "error", err)
	} else {
		sessionID = &session.ID
	}

	if !unlimited {
		if _, err := s.quota.Increment(ctx, userID); err != nil {
			s.log.Error("failed to count generation", "user_id", userID, "error", err)
		}
	}

	if err := s.workspaces.Save(ctx, ws); err != nil {
		return nil, err
	}

	s.log.Info("generation completed",
		"user_id", userID,
		"plan", plan,
		"flashcards", len(ws.Result.Flashcards),
		"mcqs", len(ws.Result.MCQs),
		"duration", time.Since(start),
	)
	s.publish(ctx, userID, EventGenerationCompleted, models.GenerationEvent{
		Topic:      session.Topic,
		SessionID:  sessionID,
		Flashcards: len(ws.Result.Flashcards),
		MCQs:       len(ws.Result.MCQs),
	})
	return ws, nil
}

// lockTTL outlives the generation timeout so the lock cannot lapse mid-call.
func (s *StudyService) lockTTL() time.Duration {
	const minTTL = 5 * time.Minute
	if ttl := s.timeout + time.Minute; ttl > minTTL {
		return ttl
	}
	return minTTL
}

func sessionTopic(ws *models.Workspace) string {
	if topic := strings.TrimSpace(ws.Topic); topic != "" {
		return topic
	}
	if len(ws.UploadedFiles) > 0 {
		return ws.UploadedFiles[0].Name
	}
	return "Untitled"
}

// Save stores the current result as a named session.
func (s *StudyService) Save(ctx context.Context, userID, email, name string) (*models.StudySession, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fieldError("name", "Session name is required.")
	}

	ws, err := s.Workspace(ctx, userID)
	if err != nil {
		return nil, err
	}

	session := &models.StudySession{
		UserID:    userID,
		UserEmail: email,
		Topic:     name,
		Result:    ws.Result,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	ws.Modals.Save = false
	if err := s.workspaces.Save(ctx, ws); err != nil {
		return nil, err
	}
	return session, nil
}

// Load replaces the workspace result with a saved session.
func (s *StudyService) Load(ctx context.Context, userID string, id uuid.UUID) (*models.Workspace, error) {
	session, err := s.GetSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	ws, err := s.Workspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	ws.Topic = session.Topic
	applyResult(ws, session.Result)
	ws.Modals.History = false

	if err := s.workspaces.Save(ctx, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *StudyService) ListSessions(ctx context.Context, userID string) ([]*models.StudySession, error) {
	return s.sessions.ListByUser(ctx, userID)
}

func (s *StudyService) GetSession(ctx context.Context, userID string, id uuid.UUID) (*models.StudySession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && session.UserID != userID) {
		return nil, &NotFoundError{Message: "Session not found"}
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *StudyService) DeleteSession(ctx context.Context, userID string, id uuid.UUID) error {
	err := s.sessions.Delete(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: "Session not found"}
	}
	return err
}

// Reset drops the workspace together with its uploads.
func (s *StudyService) Reset(ctx context.Context, userID string) error {
	if err := s.uploads.RemoveAll(userID); err != nil {
		s.log.Warn("failed to remove uploads", "user_id", userID, "error", err)
	}
	return s.workspaces.Delete(ctx, userID)
}

func (s *StudyService) publish(ctx context.Context, userID, msgType string, payload interface{}) {
	if err := s.events.PublishUpdate(ctx, userID, models.WSMessage{Type: msgType, Payload: payload}); err != nil {
		s.log.Warn("failed to publish update", "user_id", userID, "type", msgType, "error", err)
	}
}
