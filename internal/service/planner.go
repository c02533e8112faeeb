package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"chapter-server/internal/ai"
	"chapter-server/internal/model"
	"chapter-server/internal/prompt"
	"chapter-server/pkg/duration"

	"go.uber.org/zap"
)

const (
	// ChapterTargetMinutes - целевая длительность одной главы.
	ChapterTargetMinutes = 3.75
	// MinChapters - минимальное число глав даже для очень коротких видео.
	MinChapters = 2
	// MaxTotalMinutes - самая длинная длительность, для которой строится план (48 глав).
	MaxTotalMinutes = 180
)

// ChapterCount возвращает число глав для общей длительности: ceil(m/3.75), но не меньше двух.
// 8 минут дают 3 главы, 60 минут - 16.
func ChapterCount(totalMinutes int) int {
	if totalMinutes < 0 {
		totalMinutes = 0
	}
	n := int(math.Ceil(float64(totalMinutes) / ChapterTargetMinutes))
	return max(MinChapters, n)
}

// CheckTotalMinutes отклоняет длительности, для которых план не строится.
func CheckTotalMinutes(totalMinutes int) error {
	if totalMinutes > MaxTotalMinutes {
		return fmt.Errorf("%w: length of %d minutes exceeds the %d minute limit", model.ErrInvalidInput, totalMinutes, MaxTotalMinutes)
	}
	return nil
}

// PlanRequest - входные данные планировщика.
type PlanRequest struct {
	Topic    string
	Category string
	Style    model.ScriptStyle
	// Length - подпись длительности как ее ввел пользователь ("1시간 30분").
	Length string
	// TotalMinutes берется из Length, если равно нулю.
	TotalMinutes int
	// Analysis - анализ исходного видео. Цитаты удаляются перед отправкой.
	Analysis *model.AnalysisResult
}

// ChapterPlanner строит оглавление видео через генератор.
type ChapterPlanner struct {
	client  ai.Client
	prompts *prompt.Builder
	params  ai.GenerationParams
	logger  *zap.Logger
}

// NewChapterPlanner создает планировщик глав.
func NewChapterPlanner(client ai.Client, prompts *prompt.Builder, params ai.GenerationParams, logger *zap.Logger) *ChapterPlanner {
	return &ChapterPlanner{
		client:  client,
		prompts: prompts,
		params:  params,
		logger:  logger.Named("ChapterPlanner"),
	}
}

// PlanChapters запрашивает оглавление и проверяет его. Число глав в ответе должно
// в точности совпадать с ChapterCount, иначе возвращается ContractViolationError.
func (p *ChapterPlanner) PlanChapters(ctx context.Context, req PlanRequest) (*model.Outline, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", model.ErrInvalidInput)
	}

	totalMinutes := req.TotalMinutes
	if totalMinutes == 0 {
		totalMinutes = duration.ParseMinutes(req.Length)
	}
	if err := CheckTotalMinutes(totalMinutes); err != nil {
		return nil, err
	}
	length := req.Length
	if strings.TrimSpace(length) == "" {
		length = duration.Label(totalMinutes)
	}
	count := ChapterCount(totalMinutes)

	log := p.logger.With(
		zap.String("topic", req.Topic),
		zap.String("category", req.Category),
		zap.Int("total_minutes", totalMinutes),
		zap.Int("chapter_count", count),
	)
	if totalMinutes == 0 {
		log.Warn("Duration could not be parsed, using minimum chapter count", zap.String("length", req.Length))
	}

	pr, err := p.prompts.Outline(prompt.OutlineInput{
		Topic:        req.Topic,
		Length:       length,
		Category:     req.Category,
		Style:        req.Style,
		ChapterCount: count,
		Analysis:     req.Analysis.Redacted(),
	})
	if err != nil {
		return nil, fmt.Errorf("build outline prompt: %w", err)
	}

	log.Info("Requesting chapter outline")
	resp, _, err := generateJSON[outlineResponse](ctx, p.client, model.StageOutline, ai.Request{
		Operation:    model.StageOutline,
		SystemPrompt: pr.System,
		Prompt:       pr.User,
		SchemaName:   "chapter_outline",
		Schema:       outlineSchema,
		Params:       p.params,
	})
	if err != nil {
		log.Error("Outline generation failed", zap.Error(err))
		return nil, err
	}

	outline := &model.Outline{
		NewIntent:  resp.NewIntent,
		Characters: resp.Characters,
		Chapters:   resp.Chapters,
	}
	if err := ValidateOutline(outline, count, req.Style); err != nil {
		log.Error("Outline violates contract", zap.Error(err), zap.Int("returned_chapters", len(outline.Chapters)))
		return nil, err
	}

	log.Info("Chapter outline generated", zap.Int("characters", len(outline.Characters)))
	return outline, nil
}
