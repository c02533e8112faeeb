package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"chapter-server/internal/model"
	"chapter-server/internal/workflow"

	"go.uber.org/zap"
)

// DefaultErrorLogSize - сколько последних ошибок хранится для клиента.
const DefaultErrorLogSize = 10

// FormInputs - значения полей формы клиента.
type FormInputs struct {
	Transcript string `json:"transcript"`
	YoutubeURL string `json:"youtubeUrl"`
	NewKeyword string `json:"newKeyword"`
	Category   string `json:"category"`
	Length     string `json:"length"`
	Style      string `json:"style"`
}

// ErrorEntry - запись журнала ошибок клиента.
type ErrorEntry struct {
	PlanID    string                `json:"planId,omitempty"`
	Stage     string                `json:"stage"`
	Message   string                `json:"message"`
	Failure   *model.ChapterFailure `json:"failure,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
}

// PlanRepository сохраняет планы, поля формы и журнал ошибок в Store.
// Поврежденные записи пропускаются с предупреждением.
type PlanRepository struct {
	store        Store
	errorLogSize int
	logger       *zap.Logger
	errorLocks   keyedMutex
}

var _ workflow.PlanStore = (*PlanRepository)(nil)

// NewPlanRepository создает репозиторий. errorLogSize <= 0 означает DefaultErrorLogSize.
func NewPlanRepository(store Store, errorLogSize int, logger *zap.Logger) *PlanRepository {
	if errorLogSize <= 0 {
		errorLogSize = DefaultErrorLogSize
	}
	return &PlanRepository{
		store:        store,
		errorLogSize: errorLogSize,
		logger:       logger.Named("PlanRepository"),
		errorLocks:   keyedMutex{locks: make(map[string]*refMutex)},
	}
}

func planKey(id string) string { return "plan:" + id }

func inputKey(clientID, field string) string { return "client:" + clientID + ":input:" + field }

func errorsKey(clientID string) string { return "client:" + clientID + ":errors" }

// SavePlan сохраняет документ плана.
func (r *PlanRepository) SavePlan(ctx context.Context, plan *model.Plan) error {
	if plan == nil || strings.TrimSpace(plan.ID) == "" {
		return fmt.Errorf("%w: plan id is empty", model.ErrInvalidInput)
	}
	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan %s: %w", plan.ID, err)
	}
	if err := r.store.Save(ctx, planKey(plan.ID), string(raw)); err != nil {
		return fmt.Errorf("save plan %s: %w", plan.ID, err)
	}
	return nil
}

// LoadPlan восстанавливает план. Отсутствующая или поврежденная запись - model.ErrPlanNotFound.
func (r *PlanRepository) LoadPlan(ctx context.Context, planID string) (*model.Plan, error) {
	raw, ok, err := r.store.Load(ctx, planKey(planID))
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", planID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrPlanNotFound, planID)
	}

	var plan model.Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil || plan.ID != planID || len(plan.Chapters) == 0 {
		r.logger.Warn("Ignoring malformed stored plan", zap.String("plan_id", planID), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", model.ErrPlanNotFound, planID)
	}
	return &plan, nil
}

func inputFields(in *FormInputs) map[string]*string {
	return map[string]*string{
		"transcript": &in.Transcript,
		"youtubeUrl": &in.YoutubeURL,
		"newKeyword": &in.NewKeyword,
		"category":   &in.Category,
		"length":     &in.Length,
		"style":      &in.Style,
	}
}

// SaveInputs сохраняет поля формы, каждое под своим ключом. Пустое поле удаляется.
func (r *PlanRepository) SaveInputs(ctx context.Context, clientID string, in FormInputs) error {
	if strings.TrimSpace(clientID) == "" {
		return fmt.Errorf("%w: client id is empty", model.ErrInvalidInput)
	}
	for field, val := range inputFields(&in) {
		var err error
		if *val == "" {
			err = r.store.Delete(ctx, inputKey(clientID, field))
		} else {
			err = r.store.Save(ctx, inputKey(clientID, field), *val)
		}
		if err != nil {
			return fmt.Errorf("save input %s: %w", field, err)
		}
	}
	return nil
}

// LoadInputs восстанавливает поля формы. Недоступное поле остается пустым.
func (r *PlanRepository) LoadInputs(ctx context.Context, clientID string) (FormInputs, error) {
	var in FormInputs
	if strings.TrimSpace(clientID) == "" {
		return in, fmt.Errorf("%w: client id is empty", model.ErrInvalidInput)
	}
	for field, dst := range inputFields(&in) {
		val, ok, err := r.store.Load(ctx, inputKey(clientID, field))
		if err != nil {
			r.logger.Warn("Failed to load form input", zap.String("client_id", clientID), zap.String("field", field), zap.Error(err))
			continue
		}
		if ok {
			*dst = val
		}
	}
	if in.Style != "" {
		if _, err := model.ParseScriptStyle(in.Style); err != nil {
			r.logger.Warn("Ignoring malformed stored style", zap.String("client_id", clientID), zap.String("style", in.Style))
			in.Style = ""
		}
	}
	return in, nil
}

// AppendError добавляет запись в журнал ошибок клиента, оставляя последние errorLogSize записей.
// Добавления для одного клиента выполняются по очереди в пределах процесса.
func (r *PlanRepository) AppendError(ctx context.Context, clientID string, entry ErrorEntry) error {
	if strings.TrimSpace(clientID) == "" {
		return fmt.Errorf("%w: client id is empty", model.ErrInvalidInput)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	unlock := r.errorLocks.Lock(clientID)
	defer unlock()

	entries, err := r.Errors(ctx, clientID)
	if err != nil {
		return err
	}
	entries = append([]ErrorEntry{entry}, entries...)
	if len(entries) > r.errorLogSize {
		entries = entries[:r.errorLogSize]
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal error log: %w", err)
	}
	if err := r.store.Save(ctx, errorsKey(clientID), string(raw)); err != nil {
		return fmt.Errorf("save error log: %w", err)
	}
	return nil
}

// Errors возвращает журнал ошибок клиента, новые записи первыми.
func (r *PlanRepository) Errors(ctx context.Context, clientID string) ([]ErrorEntry, error) {
	raw, ok, err := r.store.Load(ctx, errorsKey(clientID))
	if err != nil {
		return nil, fmt.Errorf("load error log: %w", err)
	}
	if !ok {
		return []ErrorEntry{}, nil
	}
	var entries []ErrorEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		r.logger.Warn("Ignoring malformed error log", zap.String("client_id", clientID), zap.Error(err))
		return []ErrorEntry{}, nil
	}
	return entries, nil
}

// keyedMutex выдает мьютекс на ключ и удаляет его, когда держателей не осталось.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
