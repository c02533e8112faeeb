package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const providerGemini = "gemini"

// geminiClient реализует Client через Gemini API.
type geminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func newGeminiClient(ctx context.Context, cfg Config, logger *zap.Logger) (*geminiClient, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" || cfg.Timeout > 0 {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
		if cfg.Timeout > 0 {
			timeout := cfg.Timeout
			clientCfg.HTTPOptions.Timeout = &timeout
		}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger.Info("Gemini client created", zap.String("model", cfg.Model), zap.Duration("timeout", cfg.Timeout))
	return &geminiClient{
		client: client,
		model:  cfg.Model,
		logger: logger.Named("GeminiClient"),
	}, nil
}

func (c *geminiClient) Model() string { return c.model }

func (c *geminiClient) Generate(ctx context.Context, req Request) (string, UsageInfo, error) {
	op := operationLabel(req)
	if err := validateRequest(req); err != nil {
		observeFailure(providerGemini, c.model, op, "error_request")
		return "", UsageInfo{}, err
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: float32Ptr(req.Params.Temperature),
		TopP:        float32Ptr(req.Params.TopP),
	}
	if n := intVal(req.Params.MaxTokens); n > 0 {
		genCfg.MaxOutputTokens = int32(n)
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Schema != nil {
		schema, err := schemaMap(req.Schema)
		if err != nil {
			observeFailure(providerGemini, c.model, op, "error_request")
			return "", UsageInfo{}, fmt.Errorf("%w: marshal schema: %v", ErrAIGenerationFailed, err)
		}
		genCfg.ResponseMIMEType = "application/json"
		genCfg.ResponseJsonSchema = schema
	}

	start := time.Now()
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), genCfg)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Error("Gemini API error", zap.String("operation", op), zap.Duration("elapsed", elapsed), zap.Error(err))
		observeFailure(providerGemini, c.model, op, "error")
		return "", UsageInfo{}, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		reason := ""
		if len(result.Candidates) > 0 {
			reason = string(result.Candidates[0].FinishReason)
		}
		c.logger.Warn("Gemini API returned empty response",
			zap.String("operation", op),
			zap.Duration("elapsed", elapsed),
			zap.String("finish_reason", reason),
		)
		observeFailure(providerGemini, c.model, op, "error_empty_response")
		return "", UsageInfo{}, fmt.Errorf("%w: empty response (finish reason %q)", ErrAIGenerationFailed, reason)
	}

	var usage UsageInfo
	if md := result.UsageMetadata; md != nil && md.TotalTokenCount > 0 {
		usage = UsageInfo{
			PromptTokens:     int(md.PromptTokenCount),
			CompletionTokens: int(md.CandidatesTokenCount),
			TotalTokens:      int(md.TotalTokenCount),
		}
	} else {
		usage = estimateUsage(c.model, req, text)
	}
	observeSuccess(providerGemini, c.model, op, elapsed, usage)

	c.logger.Info("Gemini response received",
		zap.String("operation", op),
		zap.Duration("elapsed", elapsed),
		zap.Int("response_chars", len(text)),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
	)
	return text, usage, nil
}

// Ping выполняет минимальный запрос, как проверка ключа в веб-клиенте.
func (c *geminiClient) Ping(ctx context.Context) error {
	_, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text("test"), &genai.GenerateContentConfig{
		MaxOutputTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	return nil
}
