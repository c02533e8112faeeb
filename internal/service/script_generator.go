package service

import (
	"context"
	"fmt"

	"chapter-server/internal/ai"
	"chapter-server/internal/model"
	"chapter-server/internal/prompt"

	"go.uber.org/zap"
)

// ScriptRequest - входные данные генерации сценария одной главы.
type ScriptRequest struct {
	Chapter     model.ChapterStub
	Characters  []string
	Topic       string
	Category    string
	AllChapters []model.ChapterStub
	Style       model.ScriptStyle
}

// ScriptResult - сценарий главы и замечания к его качеству.
type ScriptResult struct {
	Lines  []model.ScriptLine
	Issues []model.QualityIssue
	Usage  ai.UsageInfo
}

// ChapterScriptGenerator - контракт генерации сценария, используемый контроллером.
type ChapterScriptGenerator interface {
	GenerateChapterScript(ctx context.Context, req ScriptRequest) (*ScriptResult, error)
}

// ScriptGenerator запрашивает сценарий главы с контекстом соседних глав.
type ScriptGenerator struct {
	client  ai.Client
	prompts *prompt.Builder
	params  ai.GenerationParams
	logger  *zap.Logger
}

var _ ChapterScriptGenerator = (*ScriptGenerator)(nil)

// NewScriptGenerator создает генератор сценариев.
func NewScriptGenerator(client ai.Client, prompts *prompt.Builder, params ai.GenerationParams, logger *zap.Logger) *ScriptGenerator {
	return &ScriptGenerator{
		client:  client,
		prompts: prompts,
		params:  params,
		logger:  logger.Named("ScriptGenerator"),
	}
}

// Neighbors делит главы на предыдущие и следующие относительно главы с chapterID.
// Порядок определяется позицией в списке.
func Neighbors(all []model.ChapterStub, chapterID string) (prev, next []model.ChapterStub, ok bool) {
	for i, ch := range all {
		if ch.ID == chapterID {
			return all[:i:i], all[i+1:], true
		}
	}
	return nil, nil, false
}

// GenerateChapterScript возвращает упорядоченный сценарий только для запрошенной главы.
// В режиме нарратива все реплики получают метку NarratorLabel, чужие метки фиксируются как замечания.
func (g *ScriptGenerator) GenerateChapterScript(ctx context.Context, req ScriptRequest) (*ScriptResult, error) {
	prev, next, ok := Neighbors(req.AllChapters, req.Chapter.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrChapterNotFound, req.Chapter.ID)
	}

	minLines := g.prompts.MinLines(req.Chapter.EstimatedDuration)
	pr := g.prompts.ChapterScript(prompt.ChapterInput{
		Topic:      req.Topic,
		Category:   req.Category,
		Style:      req.Style,
		Chapter:    req.Chapter,
		Characters: req.Characters,
		Previous:   prev,
		Next:       next,
		MinLines:   minLines,
	})

	log := g.logger.With(
		zap.String("chapter_id", req.Chapter.ID),
		zap.String("style", string(req.Style)),
		zap.Int("min_lines", minLines),
	)
	log.Info("Requesting chapter script", zap.Int("previous", len(prev)), zap.Int("next", len(next)))

	resp, usage, err := generateJSON[scriptResponse](ctx, g.client, model.StageChapterScript, ai.Request{
		Operation:    model.StageChapterScript,
		SystemPrompt: pr.System,
		Prompt:       pr.User,
		SchemaName:   "chapter_script",
		Schema:       scriptSchema,
		Params:       g.params,
	})
	if err != nil {
		return nil, err
	}
	if err := ValidateScript(resp.Script); err != nil {
		log.Error("Chapter script violates contract", zap.Error(err))
		return nil, err
	}

	lines := resp.Script
	allowed := req.Characters
	if req.Style == model.StyleNarration {
		allowed = []string{model.NarratorLabel}
	}
	issues := model.InspectScript(lines, allowed)
	if req.Style == model.StyleNarration {
		for i := range lines {
			lines[i].Character = model.NarratorLabel
		}
	}

	if len(lines) < minLines {
		log.Info("Chapter script shorter than advised", zap.Int("lines", len(lines)))
	}
	if len(issues) > 0 {
		log.Warn("Chapter script has quality issues", zap.Int("issues", len(issues)), zap.Any("first", issues[0]))
	}
	log.Info("Chapter script generated", zap.Int("lines", len(lines)), zap.Int("total_tokens", usage.TotalTokens))

	return &ScriptResult{Lines: lines, Issues: issues, Usage: usage}, nil
}
