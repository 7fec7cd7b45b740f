package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studyai-backend/internal/handlers"
	"studyai-backend/internal/logger"
	"studyai-backend/internal/middleware"
	"studyai-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	studyHandler *handlers.StudyHandler,
	paymentHandler *handlers.PaymentHandler,
	webhookHandler http.Handler,
	wsHub *websocket.Hub,
	frontendURL string,
	log *logger.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(frontendURL))

	// Public payment endpoints (20 req/min per IP)
	publicLimiter := middleware.NewRateLimiter(20, time.Minute)
	// Generation is the expensive call (10 req/min per IP)
	generateLimiter := middleware.NewRateLimiter(10, time.Minute)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Webhook answers 405 itself for other methods.
	r.Handle("/webhooks/razorpay", webhookHandler)

	r.With(publicLimiter.Middleware).Post("/api/create-subscription", paymentHandler.CreateSubscriptionStub)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/payments/plans", paymentHandler.Plans)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Get("/plan", studyHandler.GetPlan)

			// ──── Workspace Routes ────
			r.Route("/workspace", func(r chi.Router) {
				r.Get("/", studyHandler.GetWorkspace)
				r.Delete("/", studyHandler.ResetWorkspace)
				r.Put("/inputs", studyHandler.UpdateInputs)
				r.With(generateLimiter.Middleware).Post("/generate", studyHandler.Generate)
				r.Post("/flashcards/{index}/reveal", studyHandler.RevealFlashcard)
				r.Put("/flashcards/active", studyHandler.SetActiveCard)
				r.Post("/mcqs/{index}/answer", studyHandler.AnswerMCQ)
				r.Post("/files", studyHandler.UploadFile)
				r.Get("/files/{id}/content", studyHandler.GetFileContent)
				r.Delete("/files/{id}", studyHandler.DeleteFile)
				r.Put("/video", studyHandler.SetVideo)
				r.Delete("/video", studyHandler.RemoveVideo)
				r.Put("/modals/{name}", studyHandler.SetModal)
				r.Post("/save", studyHandler.Save)
				r.Post("/load/{id}", studyHandler.Load)
			})

			// ──── Saved Session Routes ────
			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", studyHandler.ListSessions)
				r.Get("/{id}", studyHandler.GetSession)
				r.Delete("/{id}", studyHandler.DeleteSession)
			})

			// ──── Payment Routes ────
			r.Route("/payments", func(r chi.Router) {
				r.Post("/checkout", paymentHandler.Checkout)
				r.Post("/subscriptions", paymentHandler.CreateSubscription)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
