// Package paraphrase rewrites post text through an OpenAI-compatible
// completion API. A single rewrite call walks a shuffled copy of the
// configured model list and returns the first usable response; exhausting
// the list is reported as a Result with an error, not as a Go error, so
// the caller can fall back to the original text.
package paraphrase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// defaultBaseURL points at the io.net Intelligence OpenAI-compatible API.
const defaultBaseURL = "https://api.intelligence.io.solutions/api/v1"

// ErrAllModelsFailed is carried in the Result when every configured model
// errored or returned empty content.
var ErrAllModelsFailed = errors.New("all models unavailable or rate-limited")

// ChatClient is the subset of the OpenAI client the engine needs.
// *openai.Client satisfies it; tests substitute a mock.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// Params are the generation parameters passed verbatim with every request.
type Params struct {
	Models             []string
	Temperature        float32
	TopP               float32
	MaxTokens          int
	FrequencyPenalty   float32
	PresencePenalty    float32
	SystemPrompt       string
	UserPromptTemplate string
}

// Result is the outcome of one rewrite call. Err is nil on success; on
// failure Text carries the original input so the caller can dispatch it
// as-is.
type Result struct {
	Text       string
	ModelName  string
	TokensUsed int
	Err        error
}

// Failed reports whether the rewrite fell through every model.
func (r Result) Failed() bool { return r.Err != nil }

// Engine drives the rewrite-with-fallback chain.
type Engine struct {
	client ChatClient
	params Params
	rng    *rand.Rand
}

// NewClient builds the OpenAI-compatible client for the rewrite service.
// baseURL may be empty to use the io.net Intelligence endpoint.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	return openai.NewClientWithConfig(cfg)
}

// New creates a rewrite engine. The rand source only drives model
// rotation and is injected so tests can fix the permutation.
func New(client ChatClient, params Params, rng *rand.Rand) *Engine {
	return &Engine{client: client, params: params, rng: rng}
}

// HealthCheck verifies the API key by listing available models.
func (e *Engine) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("paraphrase API health check: %w", err)
	}
	return nil
}

// Rewrite paraphrases text, trying each configured model once in a random
// order. Empty or whitespace-only input short-circuits without a remote
// call and is reported under the reserved model name "no_text".
func (e *Engine) Rewrite(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Text: text, ModelName: "no_text"}
	}

	models := make([]string, len(e.params.Models))
	copy(models, e.params.Models)
	e.rng.Shuffle(len(models), func(i, j int) {
		models[i], models[j] = models[j], models[i]
	})

	for _, model := range models {
		log.Printf("[Paraphrase] Trying model %s", shortModelName(model))

		resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: e.params.SystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: e.params.UserPromptTemplate + "\n\n" + text},
			},
			Temperature:      e.params.Temperature,
			TopP:             e.params.TopP,
			MaxTokens:        e.params.MaxTokens,
			FrequencyPenalty: e.params.FrequencyPenalty,
			PresencePenalty:  e.params.PresencePenalty,
		})
		if err != nil {
			log.Printf("[Paraphrase] Model %s failed: %v", shortModelName(model), err)
			continue
		}

		content := ""
		if len(resp.Choices) > 0 {
			content = strings.TrimSpace(resp.Choices[0].Message.Content)
		}
		if content == "" {
			log.Printf("[Paraphrase] Model %s returned empty content", shortModelName(model))
			continue
		}

		return Result{
			Text:       content,
			ModelName:  model,
			TokensUsed: resp.Usage.TotalTokens,
		}
	}

	log.Printf("[Paraphrase] All %d models exhausted", len(models))
	return Result{Text: text, ModelName: "failed", Err: ErrAllModelsFailed}
}

// shortModelName trims the provider prefix from names like
// "meta-llama/Llama-3.3-70B-Instruct" for log readability.
func shortModelName(model string) string {
	if idx := strings.LastIndex(model, "/"); idx >= 0 {
		return model[idx+1:]
	}
	return model
}
