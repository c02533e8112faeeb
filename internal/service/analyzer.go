package service

import (
	"context"
	"fmt"
	"strings"

	"chapter-server/internal/ai"
	"chapter-server/internal/model"
	"chapter-server/internal/prompt"

	"go.uber.org/zap"
)

// Analyzer анализирует транскрипт исходного видео и предлагает новые темы.
type Analyzer struct {
	client  ai.Client
	prompts *prompt.Builder
	params  ai.GenerationParams
	logger  *zap.Logger
}

// NewAnalyzer создает Analyzer.
func NewAnalyzer(client ai.Client, prompts *prompt.Builder, params ai.GenerationParams, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		client:  client,
		prompts: prompts,
		params:  params,
		logger:  logger.Named("Analyzer"),
	}
}

// AnalyzeTranscript возвращает ключевые слова, намерение, прогноз просмотров и структуру сценария.
func (a *Analyzer) AnalyzeTranscript(ctx context.Context, transcript, category, videoTitle string) (*model.AnalysisResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: transcript is required", model.ErrInvalidInput)
	}

	pr := a.prompts.Analysis(transcript, category, videoTitle)
	resp, _, err := generateJSON[analysisResponse](ctx, a.client, model.StageAnalysis, ai.Request{
		Operation:    model.StageAnalysis,
		SystemPrompt: pr.System,
		Prompt:       pr.User,
		SchemaName:   "transcript_analysis",
		Schema:       analysisSchema,
		Params:       a.params,
	})
	if err != nil {
		a.logger.Error("Transcript analysis failed", zap.String("category", category), zap.Error(err))
		return nil, err
	}

	result := &model.AnalysisResult{
		Keywords:       resp.Keywords,
		Intent:         resp.Intent,
		ViewPrediction: resp.ViewPrediction,
	}
	for _, st := range resp.ScriptStructure {
		result.ScriptStructure = append(result.ScriptStructure, model.ScriptStage{
			Stage:   st.Stage,
			Purpose: st.Purpose,
			Quotes:  st.Quotes,
		})
	}
	if err := ValidateAnalysis(result); err != nil {
		a.logger.Error("Analysis violates contract", zap.Error(err))
		return nil, err
	}

	a.logger.Info("Transcript analyzed",
		zap.String("category", category),
		zap.Int("keywords", len(result.Keywords)),
		zap.Int("stages", len(result.ScriptStructure)),
	)
	return result, nil
}

// SuggestIdeas предлагает новые темы видео на основе анализа.
func (a *Analyzer) SuggestIdeas(ctx context.Context, analysis *model.AnalysisResult, category, keyword string) ([]string, error) {
	if analysis == nil {
		return nil, fmt.Errorf("%w: analysis is required", model.ErrInvalidInput)
	}

	pr, err := a.prompts.Ideas(analysis, category, keyword)
	if err != nil {
		return nil, err
	}
	resp, _, err := generateJSON[ideasResponse](ctx, a.client, model.StageIdeas, ai.Request{
		Operation:    model.StageIdeas,
		SystemPrompt: pr.System,
		Prompt:       pr.User,
		SchemaName:   "video_ideas",
		Schema:       ideasSchema,
		Params:       a.params,
	})
	if err != nil {
		a.logger.Error("Idea generation failed", zap.String("category", category), zap.Error(err))
		return nil, err
	}

	ideas := make([]string, 0, len(resp.Ideas))
	for _, idea := range resp.Ideas {
		if s := strings.TrimSpace(idea); s != "" {
			ideas = append(ideas, s)
		}
	}
	if len(ideas) == 0 {
		return nil, model.NewContractViolation(model.StageIdeas, "ideas", "must not be empty")
	}
	return ideas, nil
}
