package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"studyai-backend/internal/logger"
)

// GeminiCompleter is the alternative Completer backed by the Gemini API.
type GeminiCompleter struct {
	client      *genai.Client
	modelName   string
	temperature float32
	timeout     time.Duration
	rateChan    chan struct{} // Token bucket
	log         *logger.Logger
}

// NewGeminiCompleter returns a completer that reports ErrMissingAPIKey on use
// when apiKey is empty.
func NewGeminiCompleter(apiKey, modelName string, temperature float64, concurrentReqs int, timeout time.Duration, log *logger.Logger) (*GeminiCompleter, error) {
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	g := &GeminiCompleter{
		modelName:   modelName,
		temperature: float32(temperature),
		timeout:     timeout,
		rateChan:    rateChan,
		log:         log,
	}
	if strings.TrimSpace(apiKey) == "" {
		return g, nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *GeminiCompleter) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// acquireRate blocks until a rate slot is available
func (g *GeminiCompleter) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *GeminiCompleter) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *GeminiCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if g.client == nil {
		return "", ErrMissingAPIKey
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.acquireRate(ctx); err != nil {
		return "", err
	}
	defer g.releaseRate()

	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(g.temperature)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			g.log.Warn("Gemini stopped early", "candidate", i, "finish_reason", cand.FinishReason.String())
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
