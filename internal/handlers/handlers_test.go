package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyai-backend/internal/config"
	"studyai-backend/internal/logger"
	"studyai-backend/internal/middleware"
	"studyai-backend/internal/models"
	"studyai-backend/internal/repository"
	"studyai-backend/internal/services"
)

// ─── Stubs ───

type stubSessions struct {
	sessions []*models.StudySession
}

func (s *stubSessions) Create(ctx context.Context, sess *models.StudySession) error {
	sess.ID = uuid.New()
	sess.CreatedAt = time.Now()
	s.sessions = append(s.sessions, sess)
	return nil
}

func (s *stubSessions) ListByUser(ctx context.Context, userID string) ([]*models.StudySession, error) {
	out := []*models.StudySession{}
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *stubSessions) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubSessions) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	for i, sess := range s.sessions {
		if sess.ID == id && sess.UserID == userID {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type stubPlans map[string]models.Plan

func (p stubPlans) GetPlan(ctx context.Context, userID string) models.Plan {
	if plan, ok := p[userID]; ok {
		return plan
	}
	return models.PlanFree
}

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, topic string, flashcards, mcqs int) (*models.StudyResult, error) {
	return &models.StudyResult{
		Overview:   "overview of " + topic,
		Flashcards: []models.Flashcard{{Question: "q", Answer: "a"}},
		MCQs:       []models.MCQ{{Question: "Capital of France?", Options: []string{"Paris", "Rome", "Berlin", "Madrid"}, Answer: "Paris"}},
	}, nil
}

type stubVideos struct{}

func (stubVideos) Resolve(ctx context.Context, raw string) (*models.VideoEmbed, error) {
	id, embed, ok := services.EmbedURL(raw)
	if !ok {
		return nil, &services.ValidationError{Message: "not a recognised YouTube link"}
	}
	return &models.VideoEmbed{URL: raw, VideoID: id, EmbedURL: embed}, nil
}

func newTestStudyHandler(t *testing.T, plans stubPlans) (*StudyHandler, *stubSessions) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	sessions := &stubSessions{}
	svc := services.NewStudyService(
		sessions,
		plans,
		config.DefaultPlanCatalog(),
		repository.NewWorkspaceRepo(rdb, time.Hour),
		stubGenerator{},
		services.NewQuotaCounter(rdb, 3),
		services.NewRedisPublisher(rdb),
		services.NewUploadStore(t.TempDir(), 1024*1024),
		stubVideos{},
		time.Second,
		logger.Nop(),
	)
	return NewStudyHandler(svc, 1024*1024, logger.Nop()), sessions
}

// withUser attaches the identity the JWT middleware would and any chi URL params.
func withUser(req *http.Request, userID string, params map[string]string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	ctx = context.WithValue(ctx, middleware.UserEmailKey, userID+"@example.com")
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type workspaceResponse struct {
	Workspace models.Workspace       `json:"workspace"`
	Sessions  []*models.StudySession `json:"sessions"`
}

func decodeWorkspace(t *testing.T, rr *httptest.ResponseRecorder) workspaceResponse {
	t.Helper()
	var resp workspaceResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func generateFor(t *testing.T, h *StudyHandler, userID, topic string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.UpdateInputs(rr, withUser(jsonRequest(http.MethodPut, "/api/v1/workspace/inputs", map[string]string{"topic": topic}), userID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("update inputs: %d %s", rr.Code, rr.Body.String())
	}
	rr = httptest.NewRecorder()
	h.Generate(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/workspace/generate", nil), userID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", rr.Code, rr.Body.String())
	}
}

// ─── Workspace Handler Tests ───

func TestUpdateInputs_ClampsCounts(t *testing.T) {
	h, _ := newTestStudyHandler(t, stubPlans{})

	rr := httptest.NewRecorder()
	req := jsonRequest(http.MethodPut, "/api/v1/workspace/inputs", map[string]interface{}{
		"topic": "Cells", "flashcard_count": 0, "mcq_count": 50,
	})
	h.UpdateInputs(rr, withUser(req, "user_1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	ws := decodeWorkspace(t, rr).Workspace
	if ws.FlashcardCount != 1 || ws.MCQCount != 20 || ws.Topic != "Cells" {
		t.Fatalf("unexpected inputs: %+v", ws)
	}
}

func TestAnswerMCQ_WriteOnce(t *testing.T) {
	h, _ := newTestStudyHandler(t, stubPlans{})
	generateFor(t, h, "user_1", "Geography")

	answer := func(option string) models.Workspace {
		rr := httptest.NewRecorder()
		req := jsonRequest(http.MethodPost, "/api/v1/workspace/mcqs/0/answer", map[string]string{"option": option})
		h.AnswerMCQ(rr, withUser(req, "user_1", map[string]string{"index": "0"}))
		if rr.Code != http.StatusOK {
			t.Fatalf("answer: %d %s", rr.Code, rr.Body.String())
		}
		return decodeWorkspace(t, rr).Workspace
	}

	ws := answer("Paris")
	if ws.MCQFeedback[0] == nil || !*ws.MCQFeedback[0] {
		t.Fatalf("Paris should be correct")
	}
	ws = answer("Rome")
	if *ws.MCQAnswers[0] != "Paris" || !*ws.MCQFeedback[0] {
		t.Fatalf("second answer must be ignored, got %q", *ws.MCQAnswers[0])
	}
}

func TestAnswerMCQ_BadIndex(t *testing.T) {
	h, _ := newTestStudyHandler(t, stubPlans{})

	rr := httptest.NewRecorder()
	req := jsonRequest(http.MethodPost, "/api/v1/workspace/mcqs/x/answer", map[string]string{"option": "A"})
	h.AnswerMCQ(rr, withUser(req, "user_1", map[string]string{"index": "x"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = jsonRequest(http.MethodPost, "/api/v1/workspace/mcqs/3/answer", map[string]string{"option": "A"})
	h.AnswerMCQ(rr, withUser(req, "user_1", map[string]string{"index": "3"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown question, got %d", rr.Code)
	}
}

func TestGenerate_FreeQuotaReturns402(t *testing.T) {
	h, sessions := newTestStudyHandler(t, stubPlans{})
	for i := 0; i < 3; i++ {
		generateFor(t, h, "user_1", "Cells")
	}
	if len(sessions.sessions) != 3 {
		t.Fatalf("expected 3 auto-saved sessions, got %d", len(sessions.sessions))
	}

	rr := httptest.NewRecorder()
	h.Generate(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/workspace/generate", nil), "user_1", nil))
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d %s", rr.Code, rr.Body.String())
	}
	var body models.ErrorResponse
	json.NewDecoder(rr.Body).Decode(&body)
	if body.Error.Code != "UPGRADE_REQUIRED" {
		t.Fatalf("unexpected error code %q", body.Error.Code)
	}

	rr = httptest.NewRecorder()
	h.GetPlan(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/plan", nil), "user_1", nil))
	var status models.PlanStatus
	json.NewDecoder(rr.Body).Decode(&status)
	if status.Plan != models.PlanFree || status.GenerationsRemaining == nil || *status.GenerationsRemaining != 0 {
		t.Fatalf("unexpected plan status %+v", status)
	}
}

func TestGenerate_ProUnlimited(t *testing.T) {
	h, _ := newTestStudyHandler(t, stubPlans{"user_1": models.PlanPro})
	for i := 0; i < 5; i++ {
		generateFor(t, h, "user_1", "Cells")
	}
}

func TestGenerate_RequiresTopic(t *testing.T) {
	h, _ := newTestStudyHandler(t, stubPlans{})

	rr := httptest.NewRecorder()
	h.Generate(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/workspace/generate", nil), "user_1", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestSetModal_HistoryListsSessions(t *testing.T) {
	h, _ := newTestStudyHandler(t, stubPlans{})
	generateFor(t, h, "user_1", "Cells")

	rr := httptest.NewRecorder()
	req := jsonRequest(http.MethodPut, "/api/v1/workspace/modals/history", map[string]bool{"open": true})
	h.SetModal(rr, withUser(req, "user_1", map[string]string{"name": "history"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeWorkspace(t, rr)
	if !resp.Workspace.Modals.History || len(resp.Sessions) != 1 {
		t.Fatalf("expected open history with one session, got %+v", resp)
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	h, _ := newTestStudyHandler(t, stubPlans{})
	generateFor(t, h, "user_1", "Cells")

	rr := httptest.NewRecorder()
	h.Save(rr, withUser(jsonRequest(http.MethodPost, "/api/v1/workspace/save", map[string]string{"name": ""}), "user_1", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank name should be 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Save(rr, withUser(jsonRequest(http.MethodPost, "/api/v1/workspace/save", map[string]string{"name": "Week 1"}), "user_1", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	var saved struct {
		Session models.StudySession `json:"session"`
	}
	json.NewDecoder(rr.Body).Decode(&saved)

	rr = httptest.NewRecorder()
	h.Load(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/workspace/load/"+saved.Session.ID.String(), nil), "user_2", map[string]string{"id": saved.Session.ID.String()}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("other user should get 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Load(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/workspace/load/"+saved.Session.ID.String(), nil), "user_1", map[string]string{"id": saved.Session.ID.String()}))
	if rr.Code != http.StatusOK || decodeWorkspace(t, rr).Workspace.Topic != "Week 1" {
		t.Fatalf("load failed: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.DeleteSession(rr, withUser(httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/nope", nil), "user_1", map[string]string{"id": "nope"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid id should be 400, got %d", rr.Code)
	}
}

func TestSetVideo_InvalidLinkLeavesWorkspace(t *testing.T) {
	h, _ := newTestStudyHandler(t, stubPlans{})

	rr := httptest.NewRecorder()
	h.SetVideo(rr, withUser(jsonRequest(http.MethodPut, "/api/v1/workspace/video", map[string]string{"url": "https://example.com"}), "user_1", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.SetVideo(rr, withUser(jsonRequest(http.MethodPut, "/api/v1/workspace/video", map[string]string{"url": "https://youtu.be/dQw4w9WgXcQ"}), "user_1", nil))
	ws := decodeWorkspace(t, rr).Workspace
	if ws.Video == nil || ws.Video.EmbedURL != "https://www.youtube.com/embed/dQw4w9WgXcQ" {
		t.Fatalf("expected embed, got %+v", ws.Video)
	}
}

func TestUploadAndFetchFile(t *testing.T) {
	h, _ := newTestStudyHandler(t, stubPlans{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("kind", "document")
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	fw.Write([]byte("Photosynthesis converts light into chemical energy."))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/workspace/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.UploadFile(rr, withUser(req, "user_1", nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		File models.UploadedFile `json:"file"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if !strings.HasPrefix(resp.File.Preview, "Photosynthesis") {
		t.Fatalf("expected preview, got %q", resp.File.Preview)
	}

	rr = httptest.NewRecorder()
	id := resp.File.ID.String()
	h.GetFileContent(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/workspace/files/"+id+"/content", nil), "user_1", map[string]string{"id": id}))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "chemical energy") {
		t.Fatalf("expected file content, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.GetFileContent(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/workspace/files/"+id+"/content", nil), "user_2", map[string]string{"id": id}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("other users must not read the file, got %d", rr.Code)
	}
}

// ─── Payment Handler Tests ───

type stubPaymentService struct {
	subID  string
	subErr error
}

func (s *stubPaymentService) Catalog() config.PlanCatalog { return config.DefaultPlanCatalog() }

func (s *stubPaymentService) Checkout(ctx context.Context, userID, email, planName string) (*models.CheckoutConfig, error) {
	if planName == "Free" {
		return nil, &services.ValidationError{Message: "The Free plan does not require payment"}
	}
	return &models.CheckoutConfig{Amount: 150000, Description: "Upgrade to Pro", Prefill: models.CheckoutPrefill{Email: email}}, nil
}

func (s *stubPaymentService) CreateSubscription(ctx context.Context, planID string) (string, error) {
	return s.subID, s.subErr
}

func TestCreateSubscriptionStub(t *testing.T) {
	h := NewPaymentHandler(&stubPaymentService{subID: "sub_1"}, logger.Nop())

	rr := httptest.NewRecorder()
	h.CreateSubscriptionStub(rr, jsonRequest(http.MethodPost, "/api/create-subscription", map[string]string{"planId": "plan_x"}))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"subscriptionId":"sub_1"`) {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}

	gatewayErr := fmt.Errorf("create subscription: %w", errors.New("The id provided does not exist"))
	h = NewPaymentHandler(&stubPaymentService{subErr: gatewayErr}, logger.Nop())
	rr = httptest.NewRecorder()
	h.CreateSubscriptionStub(rr, jsonRequest(http.MethodPost, "/api/create-subscription", map[string]string{"planId": "plan_x"}))
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if rr.Code != http.StatusInternalServerError || body["error"] != "The id provided does not exist" {
		t.Fatalf("expected 500 carrying the gateway message, got %d %v", rr.Code, body)
	}

	h = NewPaymentHandler(&stubPaymentService{subErr: &services.ValidationError{Message: "planId is required"}}, logger.Nop())
	rr = httptest.NewRecorder()
	h.CreateSubscriptionStub(rr, jsonRequest(http.MethodPost, "/api/create-subscription", map[string]string{}))
	body = nil
	json.NewDecoder(rr.Body).Decode(&body)
	if rr.Code != http.StatusInternalServerError || body["error"] != "planId is required" {
		t.Fatalf("expected 500 with validation message, got %d %v", rr.Code, body)
	}
}

func TestCheckoutHandler(t *testing.T) {
	h := NewPaymentHandler(&stubPaymentService{}, logger.Nop())

	rr := httptest.NewRecorder()
	h.Checkout(rr, withUser(jsonRequest(http.MethodPost, "/api/v1/payments/checkout", map[string]string{"plan": "Pro"}), "user_1", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"amount":150000`) {
		t.Fatalf("unexpected checkout response %d %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "user_1@example.com") {
		t.Fatalf("checkout should prefill the caller's email")
	}

	rr = httptest.NewRecorder()
	h.Checkout(rr, withUser(jsonRequest(http.MethodPost, "/api/v1/payments/checkout", map[string]string{"plan": "Free"}), "user_1", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Free checkout should be 400, got %d", rr.Code)
	}
}

// ─── Webhook Handler Tests ───

type stubPlanWriter struct {
	upserts int
	err     error
}

func (s *stubPlanWriter) Upsert(ctx context.Context, p *models.UserPlan) error {
	if s.err != nil {
		return s.err
	}
	s.upserts++
	return nil
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(method, body, signature string) *http.Request {
	req := httptest.NewRequest(method, "/webhooks/razorpay", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Razorpay-Signature", signature)
	}
	return req
}

func TestWebhookHandler(t *testing.T) {
	captured := `{"payload":{"payment":{"entity":{"id":"pay_1","status":"captured","notes":{"user_id":"u1","plan":"Premium"}}}}}`
	pending := `{"payload":{"payment":{"entity":{"id":"pay_2","status":"created","notes":{"user_id":"u1","plan":"Pro"}}}}}`

	tests := []struct {
		name    string
		req     *http.Request
		status  int
		body    string
		upserts int
		dbErr   error
	}{
		{"method not allowed", webhookRequest(http.MethodGet, "", ""), http.StatusMethodNotAllowed, "Method Not Allowed", 0, nil},
		{"missing signature", webhookRequest(http.MethodPost, captured, ""), http.StatusBadRequest, "Invalid signature", 0, nil},
		{"invalid json", webhookRequest(http.MethodPost, "nope", sign("nope")), http.StatusBadRequest, "Invalid JSON payload", 0, nil},
		{"not captured", webhookRequest(http.MethodPost, pending, sign(pending)), http.StatusBadRequest, "Payment not captured", 0, nil},
		{"database error", webhookRequest(http.MethodPost, captured, sign(captured)), http.StatusInternalServerError, "Database error: timeout", 0, errors.New("timeout")},
		{"applied", webhookRequest(http.MethodPost, captured, sign(captured)), http.StatusOK, "OK", 1, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			plans := &stubPlanWriter{err: tc.dbErr}
			h := NewWebhookHandler(services.NewWebhookProcessor(plans, nil, nil, "whsec", logger.Nop()), logger.Nop())

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, tc.req)

			if rr.Code != tc.status || rr.Body.String() != tc.body {
				t.Fatalf("got %d %q, want %d %q", rr.Code, rr.Body.String(), tc.status, tc.body)
			}
			if plans.upserts != tc.upserts {
				t.Fatalf("expected %d upserts, got %d", tc.upserts, plans.upserts)
			}
		})
	}
}
