package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

const providerOllama = "ollama"

// ollamaClient реализует Client через нативный API Ollama.
type ollamaClient struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

func newOllamaClient(cfg Config, logger *zap.Logger) (*ollamaClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama base URL '%s': %w", baseURL, err)
	}

	logger.Info("Ollama client created",
		zap.String("base_url", baseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
	)
	return &ollamaClient{
		client: api.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
		logger: logger.Named("OllamaClient"),
	}, nil
}

func (c *ollamaClient) Model() string { return c.model }

func (c *ollamaClient) Generate(ctx context.Context, req Request) (string, UsageInfo, error) {
	op := operationLabel(req)
	if err := validateRequest(req); err != nil {
		observeFailure(providerOllama, c.model, op, "error_request")
		return "", UsageInfo{}, err
	}

	messages := make([]api.Message, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	options := map[string]interface{}{}
	if req.Params.Temperature != nil {
		options["temperature"] = *req.Params.Temperature
	}
	if req.Params.TopP != nil {
		options["top_p"] = *req.Params.TopP
	}
	if n := intVal(req.Params.MaxTokens); n > 0 {
		options["num_predict"] = n
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}
	if req.Schema != nil {
		format, err := schemaJSON(req.Schema)
		if err != nil {
			observeFailure(providerOllama, c.model, op, "error_request")
			return "", UsageInfo{}, fmt.Errorf("%w: marshal schema: %v", ErrAIGenerationFailed, err)
		}
		chatReq.Format = format
	}

	start := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Error("Ollama API timeout", zap.String("operation", op), zap.Duration("elapsed", elapsed), zap.Error(err))
		} else {
			c.logger.Error("Ollama API error", zap.String("operation", op), zap.Duration("elapsed", elapsed), zap.Error(err))
		}
		observeFailure(providerOllama, c.model, op, "error")
		return "", UsageInfo{}, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		c.logger.Warn("Ollama API returned empty response", zap.String("operation", op), zap.Duration("elapsed", elapsed))
		observeFailure(providerOllama, c.model, op, "error_empty_response")
		return "", UsageInfo{}, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	text := resp.Message.Content
	usage := UsageInfo{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
	if usage.TotalTokens == 0 {
		usage = estimateUsage(c.model, req, text)
	}
	observeSuccess(providerOllama, c.model, op, elapsed, usage)

	c.logger.Info("Ollama response received",
		zap.String("operation", op),
		zap.Duration("elapsed", elapsed),
		zap.Int("response_chars", len(text)),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
	)
	return text, usage, nil
}

// Ping проверяет, что модель доступна на сервере Ollama.
func (c *ollamaClient) Ping(ctx context.Context) error {
	if err := c.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if _, err := c.client.Show(ctx, &api.ShowRequest{Model: c.model}); err != nil {
		return fmt.Errorf("%w: model %s: %v", ErrAIGenerationFailed, c.model, err)
	}
	return nil
}
