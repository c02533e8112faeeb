package workflow

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"chapter-server/internal/model"
)

// PlanAggregate хранит документ плана: оглавление, персонажей и сценарии глав.
// Число и порядок глав фиксируются при создании. Все изменения глав проходят через
// переходы состояния под одной блокировкой.
type PlanAggregate struct {
	mu     sync.RWMutex
	plan   model.Plan
	tokens []uint64 // текущая попытка генерации для каждой главы, 0 - нет попытки
	seq    uint64
	now    func() time.Time
}

// NewPlanAggregate создает агрегат из нового или восстановленного плана.
// Главы в состоянии generating возвращаются в idle, так как их попытки уже потеряны.
func NewPlanAggregate(plan *model.Plan) (*PlanAggregate, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: plan is nil", model.ErrInvalidInput)
	}
	if strings.TrimSpace(plan.ID) == "" {
		return nil, fmt.Errorf("%w: plan id is empty", model.ErrInvalidInput)
	}
	if len(plan.Chapters) == 0 {
		return nil, fmt.Errorf("%w: plan %s has no chapters", model.ErrInvalidInput, plan.ID)
	}

	p := plan.Clone()
	seen := make(map[string]struct{}, len(p.Chapters))
	for i := range p.Chapters {
		ch := &p.Chapters[i]
		if strings.TrimSpace(ch.ID) == "" {
			return nil, fmt.Errorf("%w: chapter %d has no id", model.ErrInvalidInput, i)
		}
		if _, dup := seen[ch.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate chapter id %q", model.ErrInvalidInput, ch.ID)
		}
		seen[ch.ID] = struct{}{}
		normalizeChapter(ch)
	}

	return &PlanAggregate{
		plan:   p,
		tokens: make([]uint64, len(p.Chapters)),
		now:    time.Now,
	}, nil
}

func normalizeChapter(ch *model.Chapter) {
	ch.IsGenerating = false
	switch {
	case ch.HasScript():
		ch.State = model.ChapterDone
	case ch.State == model.ChapterFailed:
		ch.Script = nil
	default:
		ch.State = model.ChapterIdle
		ch.Script = nil
	}
}

// ID возвращает идентификатор плана.
func (a *PlanAggregate) ID() string {
	return a.plan.ID
}

// Len возвращает число глав.
func (a *PlanAggregate) Len() int {
	return len(a.tokens)
}

// Snapshot возвращает глубокую копию плана для чтения и экспорта.
func (a *PlanAggregate) Snapshot() model.Plan {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.plan.Clone()
}

// Chapter возвращает копию главы по индексу.
func (a *PlanAggregate) Chapter(index int) (model.Chapter, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if err := a.checkIndex(index); err != nil {
		return model.Chapter{}, err
	}
	return a.plan.Chapters[index].Clone(), nil
}

// IndexOf возвращает индекс главы по ID.
func (a *PlanAggregate) IndexOf(chapterID string) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i := a.plan.IndexOf(chapterID)
	if i < 0 {
		return -1, fmt.Errorf("%w: %s", model.ErrChapterNotFound, chapterID)
	}
	return i, nil
}

// State возвращает состояние главы.
func (a *PlanAggregate) State(index int) (model.ChapterState, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if err := a.checkIndex(index); err != nil {
		return "", err
	}
	return a.plan.Chapters[index].State, nil
}

// Completed сообщает, что у всех глав есть сценарий.
func (a *PlanAggregate) Completed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.plan.Completed()
}

func (a *PlanAggregate) checkIndex(index int) error {
	if index < 0 || index >= len(a.plan.Chapters) {
		return fmt.Errorf("%w: index %d", model.ErrChapterNotFound, index)
	}
	return nil
}

// begin переводит главу в generating, если это разрешено правилами очередности.
// При отказе состояние не меняется.
func (a *PlanAggregate) begin(index int, regenerate bool) (uint64, model.Chapter, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkIndex(index); err != nil {
		return 0, model.Chapter{}, err
	}
	ch := &a.plan.Chapters[index]

	if ch.State == model.ChapterGenerating {
		return 0, model.Chapter{}, fmt.Errorf("%w: %s", model.ErrChapterBusy, ch.ID)
	}
	for i := range a.plan.Chapters {
		if a.plan.Chapters[i].State == model.ChapterGenerating {
			return 0, model.Chapter{}, fmt.Errorf("%w: %s is generating", model.ErrPlanBusy, a.plan.Chapters[i].ID)
		}
	}
	if index > 0 && a.plan.Chapters[index-1].State != model.ChapterDone {
		return 0, model.Chapter{}, fmt.Errorf("%w: %s waits for %s", model.ErrChapterNotEligible, ch.ID, a.plan.Chapters[index-1].ID)
	}
	if ch.State == model.ChapterDone && !regenerate {
		return 0, model.Chapter{}, fmt.Errorf("%w: %s", model.ErrChapterAlreadyDone, ch.ID)
	}

	a.seq++
	a.tokens[index] = a.seq
	ch.State = model.ChapterGenerating
	ch.IsGenerating = true
	a.plan.UpdatedAt = a.now()

	return a.seq, ch.Clone(), nil
}

// attachScript - единственная операция записи сценария: заменяет главу по индексу
// и переводит ее в done. Ответ устаревшей попытки отклоняется.
func (a *PlanAggregate) attachScript(index int, token uint64, lines []model.ScriptLine, issues []model.QualityIssue) (model.Chapter, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkToken(index, token); err != nil {
		return model.Chapter{}, err
	}
	if len(lines) == 0 {
		return model.Chapter{}, model.NewContractViolation(model.StageChapterScript, "script", "must not be empty")
	}

	ch := a.plan.Chapters[index]
	ch.Script = append([]model.ScriptLine(nil), lines...)
	ch.QualityIssues = append([]model.QualityIssue(nil), issues...)
	ch.State = model.ChapterDone
	ch.IsGenerating = false
	ch.LastFailure = nil
	a.plan.Chapters[index] = ch

	a.tokens[index] = 0
	a.plan.UpdatedAt = a.now()
	return ch.Clone(), nil
}

// fail завершает попытку неудачей. Глава без сценария становится failed,
// глава с прежним сценарием (перегенерация) возвращается в done без изменений сценария.
func (a *PlanAggregate) fail(index int, token uint64, failure *model.ChapterFailure) (model.Chapter, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkToken(index, token); err != nil {
		return model.Chapter{}, err
	}

	ch := a.plan.Chapters[index]
	ch.IsGenerating = false
	ch.LastFailure = failure
	if ch.HasScript() {
		ch.State = model.ChapterDone
	} else {
		ch.State = model.ChapterFailed
		ch.Script = nil
	}
	a.plan.Chapters[index] = ch

	a.tokens[index] = 0
	a.plan.UpdatedAt = a.now()
	return ch.Clone(), nil
}

func (a *PlanAggregate) checkToken(index int, token uint64) error {
	if err := a.checkIndex(index); err != nil {
		return err
	}
	if token == 0 || a.tokens[index] != token || a.plan.Chapters[index].State != model.ChapterGenerating {
		return fmt.Errorf("%w: chapter %s", model.ErrStaleResponse, a.plan.Chapters[index].ID)
	}
	return nil
}
