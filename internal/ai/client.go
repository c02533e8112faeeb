package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"go.uber.org/zap"
)

// ErrAIGenerationFailed - любая ошибка транспорта или провайдера генерации.
var ErrAIGenerationFailed = errors.New("AI generation failed")

// GenerationParams - параметры генерации. Указатели отличают ноль от отсутствия значения.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo - использование токенов одним запросом.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool // true, если провайдер не вернул usage и токены посчитаны локально
}

// Request - запрос к генератору.
type Request struct {
	// Operation используется как метка метрик: outline, chapter_script, analysis, ideas.
	Operation    string
	SystemPrompt string
	Prompt       string
	// SchemaName и Schema описывают ожидаемый JSON. Без схемы ответ - свободный текст.
	SchemaName string
	Schema     *jsonschema.Schema
	Params     GenerationParams
}

// Client - коллаборатор генерации.
type Client interface {
	// Generate отправляет запрос и возвращает сырой текст ответа.
	Generate(ctx context.Context, req Request) (string, UsageInfo, error)
	// Ping проверяет ключ и доступность провайдера минимальным запросом.
	Ping(ctx context.Context) error
	// Model возвращает имя используемой модели.
	Model() string
}

// Config - настройки клиента.
type Config struct {
	ClientType  string // openai, ollama, gemini
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// DefaultParams возвращает параметры генерации из конфигурации.
func (c Config) DefaultParams() GenerationParams {
	temp := c.Temperature
	maxTokens := c.MaxTokens
	return GenerationParams{Temperature: &temp, MaxTokens: &maxTokens}
}

// NewClient создает клиента по типу из конфигурации.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (Client, error) {
	switch strings.ToLower(cfg.ClientType) {
	case "openai":
		logger.Info("Using AI client implementation", zap.String("type", "openai"))
		return newOpenAIClient(cfg, logger), nil
	case "ollama":
		logger.Info("Using AI client implementation", zap.String("type", "ollama"))
		return newOllamaClient(cfg, logger)
	case "gemini":
		logger.Info("Using AI client implementation", zap.String("type", "gemini"))
		return newGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI client type: '%s'", cfg.ClientType)
	}
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("%w: empty prompt", ErrAIGenerationFailed)
	}
	return nil
}

func operationLabel(req Request) string {
	if req.Operation == "" {
		return "generic"
	}
	return req.Operation
}

func float32Ptr(f *float64) *float32 {
	if f == nil {
		return nil
	}
	v := float32(*f)
	return &v
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
