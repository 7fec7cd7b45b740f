package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"golang.org/x/sync/errgroup"

	"studyai-backend/internal/config"
	"studyai-backend/internal/database"
	"studyai-backend/internal/handlers"
	"studyai-backend/internal/logger"
	"studyai-backend/internal/middleware"
	"studyai-backend/internal/repository"
	"studyai-backend/internal/router"
	"studyai-backend/internal/services"
	"studyai-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}
	log.Info("starting study backend", "env", cfg.Env, "llm_provider", cfg.LLMProvider)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	plans, err := config.LoadPlans(cfg.PlansFile)
	if err != nil {
		log.Fatal("plan catalogue invalid", "path", cfg.PlansFile, "error", err)
	}

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, 20)
	if err != nil {
		log.Fatal("postgres connection failed", "error", err)
	}
	defer pool.Close()

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("redis connection failed", "error", err)
	}
	defer redisClients.Close()

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("database migration failed", "error", err)
	}

	// ──── Initialize Repositories ────
	sessionRepo := repository.NewStudySessionRepo(pool)
	planRepo := repository.NewPlanRepo(pool, log)
	workspaceRepo := repository.NewWorkspaceRepo(redisClients.Store, cfg.WorkspaceTTL)

	// ──── Step 5: Initialize Completion Client ────
	var completer services.Completer
	switch strings.ToLower(cfg.LLMProvider) {
	case "gemini":
		gemini, err := services.NewGeminiCompleter(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMTemperature, 4, cfg.GenerationTimeout, log)
		if err != nil {
			log.Fatal("gemini client initialization failed", "error", err)
		}
		defer gemini.Close()
		completer = gemini
	default:
		completer = services.NewOpenRouterClient(cfg.OpenRouterURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.LLMTemperature, cfg.GenerationTimeout)
	}

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := services.NewRedisPublisher(redisClients.Store)
	studyService := services.NewStudyService(
		sessionRepo,
		planRepo,
		plans,
		workspaceRepo,
		services.NewStudyGenerator(completer),
		services.NewQuotaCounter(redisClients.Store, cfg.FreeGenerationLimit),
		publisher,
		services.NewUploadStore(cfg.StoragePath, cfg.MaxUploadBytes),
		services.NewYouTubeService(log),
		cfg.GenerationTimeout,
		log,
	)
	razorpayClient := razorpay.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	paymentService := services.NewPaymentService(razorpayClient, plans, cfg.RazorpayKeyID, log)
	webhookProcessor := services.NewWebhookProcessor(
		planRepo,
		services.NewRedisEventDeduper(redisClients.Store),
		publisher,
		cfg.RazorpayWebhookSecret,
		log,
	)

	// ──── Initialize Handlers ────
	studyHandler := handlers.NewStudyHandler(studyService, cfg.MaxUploadBytes, log)
	paymentHandler := handlers.NewPaymentHandler(paymentService, log)
	webhookHandler := handlers.NewWebhookHandler(webhookProcessor, log)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, cfg.FrontendURL, log)
	defer wsHub.Close()

	// ──── Step 7: Start HTTP Server ────
	r := router.New(jwtAuth, studyHandler, paymentHandler, webhookHandler, wsHub, cfg.FrontendURL, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("study backend ready", "addr", server.Addr, "api", "/api/v1", "ws", "/api/v1/ws")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}
}
