package model_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"chapter-server/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScriptStyle(t *testing.T) {
	t.Run("aliases", func(t *testing.T) {
		for in, want := range map[string]model.ScriptStyle{
			"":          model.StyleDialogue,
			"dialogue":  model.StyleDialogue,
			"대화 버전":     model.StyleDialogue,
			"narration": model.StyleNarration,
			"나레이션 버전":   model.StyleNarration,
		} {
			got, err := model.ParseScriptStyle(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got, in)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := model.ParseScriptStyle("musical")
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestContractViolationError(t *testing.T) {
	err := fmt.Errorf("plan chapters: %w", model.NewContractViolation(model.StageOutline, "chapters", "expected %d, got %d", 2, 3))

	assert.ErrorIs(t, err, model.ErrContractViolation)
	var cv *model.ContractViolationError
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, "chapters", cv.Field)
	assert.Equal(t, "expected 2, got 3", cv.Reason)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want model.FailureCause
	}{
		{model.ErrGenerationTimeout, model.CauseTimeout},
		{fmt.Errorf("wrap: %w", model.ErrGenerationCanceled), model.CauseCanceled},
		{model.NewContractViolation("chapter_script", "script", "empty"), model.CauseContract},
		{errors.New("status 401: invalid API key"), model.CauseAuth},
		{errors.New("RESOURCE_EXHAUSTED: quota exceeded"), model.CauseQuota},
		{errors.New("dial tcp: connection refused"), model.CauseNetwork},
		{errors.New("boom"), model.CauseUnknown},
		{nil, model.CauseUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, model.ClassifyError(tt.err), "%v", tt.err)
	}
}

func TestChapterFailureDetails(t *testing.T) {
	f := &model.ChapterFailure{
		ChapterIndex: 2,
		ChapterID:    "chapter-2",
		ChapterTitle: "밤의 산책",
		Stage:        model.StageChapterScript,
		Cause:        model.CauseTimeout,
		Message:      "chapter generation timed out",
		Topic:        "고양이 브이로그",
		Category:     "브이로그",
		OccurredAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	details := f.Details()
	assert.Contains(t, details, "chapter: 2 (chapter-2)")
	assert.Contains(t, details, "stage: chapter_script")
	assert.Contains(t, details, "cause: timeout")
	assert.Contains(t, details, "time: 2025-01-02T03:04:05Z")
}

func TestAnalysisRedacted(t *testing.T) {
	a := &model.AnalysisResult{
		Keywords:       []string{"고양이"},
		Intent:         []model.StructuredContent{{Title: "힐링", Description: "편안함"}},
		ViewPrediction: []model.StructuredContent{{Title: "조회수", Description: "높음"}},
		ScriptStructure: []model.ScriptStage{{
			Stage:   "도입",
			Purpose: "관심 유도",
			Quotes:  []model.ScriptQuote{{Timestamp: "00:01", Text: "원문 그대로"}},
		}},
	}

	r := a.Redacted()
	require.NotNil(t, r)
	assert.Equal(t, a.Keywords, r.Keywords)
	assert.Nil(t, r.ViewPrediction)
	require.Len(t, r.ScriptStructure, 1)
	assert.Empty(t, r.ScriptStructure[0].Quotes)
	assert.Equal(t, "관심 유도", r.ScriptStructure[0].Purpose)
	// исходный объект не изменился
	assert.Len(t, a.ScriptStructure[0].Quotes, 1)

	var nilAnalysis *model.AnalysisResult
	assert.Nil(t, nilAnalysis.Redacted())
}

func TestInspectScript(t *testing.T) {
	script := []model.ScriptLine{
		{Character: "민지", Timestamp: "00:00"},
		{Character: "고양이", Timestamp: "00:10"},
		{Character: "낯선 사람", Timestamp: "00:05"},
		{Character: "민지", Timestamp: "1:5"},
	}

	issues := model.InspectScript(script, []string{"민지", "고양이"})
	require.Len(t, issues, 3)
	assert.Equal(t, model.IssueUnknownSpeaker, issues[0].Kind)
	assert.Equal(t, 2, issues[0].LineIndex)
	assert.Equal(t, model.IssueTimestampOrder, issues[1].Kind)
	assert.Equal(t, model.IssueInvalidTimestamp, issues[2].Kind)
	assert.Equal(t, 3, issues[2].LineIndex)

	assert.Empty(t, model.InspectScript(script[:2], []string{"민지", "고양이"}))
}

func TestPlanClone(t *testing.T) {
	p := &model.Plan{
		Characters: []string{"a"},
		Chapters: []model.Chapter{{
			ChapterStub: model.ChapterStub{ID: "chapter-1"},
			Script:      []model.ScriptLine{{Character: "a", Line: "hi"}},
			LastFailure: &model.ChapterFailure{Message: "x"},
		}},
	}

	c := p.Clone()
	c.Characters[0] = "b"
	c.Chapters[0].Script[0].Line = "changed"
	c.Chapters[0].LastFailure.Message = "y"

	assert.Equal(t, "a", p.Characters[0])
	assert.Equal(t, "hi", p.Chapters[0].Script[0].Line)
	assert.Equal(t, "x", p.Chapters[0].LastFailure.Message)
	assert.Equal(t, 0, p.IndexOf("chapter-1"))
	assert.Equal(t, -1, p.IndexOf("chapter-9"))
}
