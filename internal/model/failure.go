package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FailureCause - грубая классификация причины сбоя для пользователя.
type FailureCause string

const (
	CauseAuth     FailureCause = "auth"
	CauseQuota    FailureCause = "quota"
	CauseNetwork  FailureCause = "network"
	CauseTimeout  FailureCause = "timeout"
	CauseContract FailureCause = "contract"
	CauseCanceled FailureCause = "canceled"
	CauseUnknown  FailureCause = "unknown"
)

// Этапы, на которых может произойти сбой.
const (
	StageOutline       = "outline"
	StageChapterScript = "chapter_script"
	StageAnalysis      = "analysis"
	StageIdeas         = "ideas"
)

// ChapterFailure хранит контекст сбоя генерации главы.
type ChapterFailure struct {
	ChapterIndex int          `json:"chapterIndex"` // с единицы, как видит пользователь
	ChapterID    string       `json:"chapterId"`
	ChapterTitle string       `json:"chapterTitle"`
	PlanID       string       `json:"planId"`
	Stage        string       `json:"stage"`
	Cause        FailureCause `json:"cause"`
	Message      string       `json:"message"`
	Topic        string       `json:"topic"`
	Category     string       `json:"category"`
	OccurredAt   time.Time    `json:"occurredAt"`
}

// ClassifyError определяет причину сбоя по ошибке.
func ClassifyError(err error) FailureCause {
	if err == nil {
		return CauseUnknown
	}
	switch {
	case errors.Is(err, ErrGenerationTimeout):
		return CauseTimeout
	case errors.Is(err, ErrGenerationCanceled):
		return CauseCanceled
	case errors.Is(err, ErrContractViolation):
		return CauseContract
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api_key"), strings.Contains(msg, "api key"), strings.Contains(msg, "401"), strings.Contains(msg, "unauthorized"):
		return CauseAuth
	case strings.Contains(msg, "quota"), strings.Contains(msg, "limit"), strings.Contains(msg, "429"):
		return CauseQuota
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return CauseTimeout
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return CauseNetwork
	default:
		return CauseUnknown
	}
}

// Details возвращает многострочный текст для копирования в буфер обмена.
func (f *ChapterFailure) Details() string {
	var b strings.Builder
	fmt.Fprintf(&b, "chapter: %d (%s)\n", f.ChapterIndex, f.ChapterID)
	fmt.Fprintf(&b, "title: %s\n", f.ChapterTitle)
	if f.PlanID != "" {
		fmt.Fprintf(&b, "plan: %s\n", f.PlanID)
	}
	fmt.Fprintf(&b, "stage: %s\n", f.Stage)
	fmt.Fprintf(&b, "cause: %s\n", f.Cause)
	fmt.Fprintf(&b, "message: %s\n", f.Message)
	fmt.Fprintf(&b, "topic: %s\n", f.Topic)
	fmt.Fprintf(&b, "category: %s\n", f.Category)
	fmt.Fprintf(&b, "time: %s", f.OccurredAt.UTC().Format(time.RFC3339))
	return b.String()
}
