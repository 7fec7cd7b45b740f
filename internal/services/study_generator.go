package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"studyai-backend/internal/models"
)

const (
	MinItemCount     = 1
	MaxItemCount     = 20
	DefaultItemCount = 10

	studySystemPrompt = "You are a helpful study assistant."
)

var (
	// ErrMissingAPIKey is a configuration error surfaced on the first generation attempt.
	ErrMissingAPIKey = errors.New("completion API key is missing; set OPENROUTER_API_KEY (or GEMINI_API_KEY with LLM_PROVIDER=gemini) and restart")
	// ErrEmptyCompletion means the endpoint answered without any message content.
	ErrEmptyCompletion = errors.New("no response content from completion API")
)

// UpstreamError is a non-2xx answer from the completion endpoint.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion API request failed: %d %s", e.StatusCode, e.Body)
}

// ParseError carries the raw model output that could not be decoded.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return "failed to parse model response: " + e.Raw
}

func (e *ParseError) Unwrap() error { return e.Err }

// Completer sends one system+user exchange to a chat model and returns its text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type StudyGenerator struct {
	completer Completer
}

func NewStudyGenerator(completer Completer) *StudyGenerator {
	return &StudyGenerator{completer: completer}
}

// Generate asks the model for a study set. The parsed object is not checked
// against the requested counts or the four-option shape.
func (g *StudyGenerator) Generate(ctx context.Context, topic string, flashcards, mcqs int) (*models.StudyResult, error) {
	prompt := BuildStudyPrompt(topic, ClampCount(flashcards), ClampCount(mcqs))

	text, err := g.completer.Complete(ctx, studySystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return ParseStudyResult(text)
}

// ClampCount bounds a requested item count to [MinItemCount, MaxItemCount].
func ClampCount(n int) int {
	return max(MinItemCount, min(MaxItemCount, n))
}

func BuildStudyPrompt(topic string, flashcards, mcqs int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a modern study assistant. For the topic: %q, generate the following in JSON format:\n", topic)
	b.WriteString("{\n")
	b.WriteString("  \"overview\": \"...\",\n")
	b.WriteString("  \"keyTerms\": [\"...\", ...],\n")
	b.WriteString("  \"flashcards\": [\n")
	b.WriteString("    {\n      \"question\": \"...\",\n      \"answer\": \"...\"\n")
	fmt.Fprintf(&b, "    }, ... (%d total)\n", flashcards)
	b.WriteString("  ],\n")
	b.WriteString("  \"mcqs\": [\n")
	b.WriteString("    {\n      \"question\": \"...\",\n      \"options\": [\"...\", \"...\", \"...\", \"...\"],\n      \"answer\": \"...\"\n")
	fmt.Fprintf(&b, "    }, ... (%d total)\n", mcqs)
	b.WriteString("  ],\n")
	b.WriteString("  \"notes\": [\"...\", ...]\n")
	b.WriteString("}\n\n")
	b.WriteString("- The flashcards should be clear and concise, suitable for digital flashcard apps.\n")
	b.WriteString("- Each MCQ must have exactly 4 plausible options, and \"answer\" must repeat the correct option verbatim.\n")
	b.WriteString("- All content should be accurate, engaging, and helpful for learning.\n")
	b.WriteString("- Do not include any explanations outside the JSON.")
	return b.String()
}

// ParseStudyResult decodes the text between the first '{' and the last '}'.
func ParseStudyResult(text string) (*models.StudyResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, &ParseError{Raw: text}
	}

	var result models.StudyResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, &ParseError{Raw: text, Err: err}
	}
	return &result, nil
}
