// Command webhook runs the payment webhook on its own, for deployments that
// keep it apart from the study API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"studyai-backend/internal/config"
	"studyai-backend/internal/database"
	"studyai-backend/internal/handlers"
	"studyai-backend/internal/logger"
	"studyai-backend/internal/middleware"
	"studyai-backend/internal/repository"
	"studyai-backend/internal/services"
)

func main() {
	cfg := config.LoadWebhook()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, 4)
	if err != nil {
		log.Fatal("postgres connection failed", "error", err)
	}
	defer pool.Close()

	planRepo := repository.NewPlanRepo(pool, log)

	var processor *services.WebhookProcessor
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("redis connection failed", "error", err)
		}
		defer redisClients.Close()
		processor = services.NewWebhookProcessor(
			planRepo,
			services.NewRedisEventDeduper(redisClients.Store),
			services.NewRedisPublisher(redisClients.Store),
			cfg.RazorpayWebhookSecret,
			log,
		)
	} else {
		log.Warn("REDIS_URL not set; duplicate deliveries will not be filtered")
		processor = services.NewWebhookProcessor(planRepo, nil, nil, cfg.RazorpayWebhookSecret, log)
	}

	webhookHandler := handlers.NewWebhookHandler(processor, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/", webhookHandler)
	r.Handle("/webhooks/razorpay", webhookHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("webhook ready", "addr", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}
}
