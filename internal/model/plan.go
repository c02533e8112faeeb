package model

import (
	"fmt"
	"strings"
	"time"
)

// NarratorLabel - единственная допустимая метка говорящего в режиме нарратива.
const NarratorLabel = "나레이터"

// ScriptStyle определяет стиль сценария главы.
type ScriptStyle string

const (
	StyleDialogue  ScriptStyle = "dialogue"
	StyleNarration ScriptStyle = "narration"
)

// ParseScriptStyle принимает как внутренние значения, так и подписи из формы ("대화 버전", "나레이션 버전").
// Пустая строка означает диалог.
func ParseScriptStyle(s string) (ScriptStyle, error) {
	switch strings.TrimSpace(s) {
	case "", string(StyleDialogue), "대화 버전", "대화":
		return StyleDialogue, nil
	case string(StyleNarration), "나레이션 버전", "나레이션":
		return StyleNarration, nil
	default:
		return "", fmt.Errorf("%w: unknown script style %q", ErrInvalidInput, s)
	}
}

// ChapterState - состояние главы в процессе генерации.
type ChapterState string

const (
	ChapterIdle       ChapterState = "idle"
	ChapterGenerating ChapterState = "generating"
	ChapterDone       ChapterState = "done"
	ChapterFailed     ChapterState = "failed"
)

// ChapterStub - заготовка главы из оглавления.
type ChapterStub struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Purpose           string `json:"purpose"`
	EstimatedDuration string `json:"estimatedDuration"`
}

// ScriptLine - одна реплика сценария.
type ScriptLine struct {
	Character   string `json:"character"`
	Line        string `json:"line"`
	Timestamp   string `json:"timestamp"`
	ImagePrompt string `json:"imagePrompt"`
}

// StructuredContent - блок "заголовок + описание".
type StructuredContent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Chapter - глава плана вместе со сценарием и состоянием генерации.
type Chapter struct {
	ChapterStub
	Script        []ScriptLine    `json:"script,omitempty"`
	IsGenerating  bool            `json:"isGenerating"`
	State         ChapterState    `json:"state"`
	LastFailure   *ChapterFailure `json:"lastFailure,omitempty"`
	QualityIssues []QualityIssue  `json:"qualityIssues,omitempty"`
}

// HasScript сообщает, есть ли у главы непустой сценарий.
func (c Chapter) HasScript() bool {
	return len(c.Script) > 0
}

// Outline - результат планирования глав.
type Outline struct {
	NewIntent  []StructuredContent `json:"newIntent"`
	Characters []string            `json:"characters"`
	Chapters   []ChapterStub       `json:"chapters"`
}

// Plan - документ плана: оглавление, персонажи и сценарии глав по мере их появления.
type Plan struct {
	ID           string              `json:"id"`
	Topic        string              `json:"topic"`
	Category     string              `json:"category"`
	Style        ScriptStyle         `json:"style"`
	TargetLength string              `json:"targetLength"`
	TotalMinutes int                 `json:"totalMinutes"`
	NewIntent    []StructuredContent `json:"newIntent"`
	Characters   []string            `json:"characters"`
	Chapters     []Chapter           `json:"chapters"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// Stubs возвращает заготовки всех глав в порядке следования.
func (p *Plan) Stubs() []ChapterStub {
	stubs := make([]ChapterStub, len(p.Chapters))
	for i, ch := range p.Chapters {
		stubs[i] = ch.ChapterStub
	}
	return stubs
}

// IndexOf возвращает индекс главы по ID или -1.
func (p *Plan) IndexOf(chapterID string) int {
	for i, ch := range p.Chapters {
		if ch.ID == chapterID {
			return i
		}
	}
	return -1
}

// Completed возвращает true, когда у всех глав есть сценарий.
func (p *Plan) Completed() bool {
	if len(p.Chapters) == 0 {
		return false
	}
	for _, ch := range p.Chapters {
		if ch.State != ChapterDone {
			return false
		}
	}
	return true
}

// Clone делает глубокую копию плана.
func (p *Plan) Clone() Plan {
	out := *p
	out.NewIntent = append([]StructuredContent(nil), p.NewIntent...)
	out.Characters = append([]string(nil), p.Characters...)
	out.Chapters = make([]Chapter, len(p.Chapters))
	for i, ch := range p.Chapters {
		out.Chapters[i] = ch.Clone()
	}
	return out
}

// Clone делает глубокую копию главы.
func (c Chapter) Clone() Chapter {
	out := c
	if c.Script != nil {
		out.Script = append([]ScriptLine(nil), c.Script...)
	}
	if c.QualityIssues != nil {
		out.QualityIssues = append([]QualityIssue(nil), c.QualityIssues...)
	}
	if c.LastFailure != nil {
		f := *c.LastFailure
		out.LastFailure = &f
	}
	return out
}
