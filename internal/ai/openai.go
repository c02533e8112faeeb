package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const providerOpenAI = "openai"

// openAIClient реализует Client поверх OpenAI-совместимого API (OpenAI, OpenRouter, vLLM).
type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func newOpenAIClient(cfg Config, logger *zap.Logger) *openAIClient {
	openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	logger.Info("OpenAI client created",
		zap.String("base_url", openaiConfig.BaseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
	)
	return &openAIClient{
		client: openaigo.NewClientWithConfig(openaiConfig),
		model:  cfg.Model,
		logger: logger.Named("OpenAIClient"),
	}
}

func (c *openAIClient) Model() string { return c.model }

func (c *openAIClient) Generate(ctx context.Context, req Request) (string, UsageInfo, error) {
	op := operationLabel(req)
	if err := validateRequest(req); err != nil {
		observeFailure(providerOpenAI, c.model, op, "error_request")
		return "", UsageInfo{}, err
	}

	messages := make([]openaigo.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openaigo.ChatCompletionMessage{
		Role:    openaigo.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openaigo.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: intVal(req.Params.MaxTokens),
	}
	if t := float32Ptr(req.Params.Temperature); t != nil {
		chatReq.Temperature = *t
	}
	if p := float32Ptr(req.Params.TopP); p != nil {
		chatReq.TopP = *p
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = op
		}
		chatReq.ResponseFormat = &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openaigo.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: req.Schema,
				Strict: true,
			},
		}
	}

	start := time.Now()
	c.logger.Debug("Sending request to AI",
		zap.String("operation", op),
		zap.Int("prompt_bytes", len(req.Prompt)),
		zap.Bool("structured", req.Schema != nil),
	)

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Error("AI API error", zap.String("operation", op), zap.Duration("elapsed", elapsed), zap.Error(err))
		observeFailure(providerOpenAI, c.model, op, "error")
		return "", UsageInfo{}, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Warn("AI API returned empty response", zap.String("operation", op), zap.Duration("elapsed", elapsed))
		observeFailure(providerOpenAI, c.model, op, "error_empty_response")
		return "", UsageInfo{}, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	text := resp.Choices[0].Message.Content
	usage := UsageInfo{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage = estimateUsage(c.model, req, text)
	}
	observeSuccess(providerOpenAI, c.model, op, elapsed, usage)

	c.logger.Info("AI response received",
		zap.String("operation", op),
		zap.Duration("elapsed", elapsed),
		zap.Int("response_chars", len(text)),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Bool("estimated", usage.Estimated),
	)
	return text, usage, nil
}

func (c *openAIClient) Ping(ctx context.Context) error {
	maxTokens := 1
	_, _, err := c.Generate(ctx, Request{
		Operation: "ping",
		Prompt:    "ping",
		Params:    GenerationParams{MaxTokens: &maxTokens},
	})
	return err
}
