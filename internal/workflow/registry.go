package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chapter-server/internal/model"
	"chapter-server/internal/service"
	"chapter-server/pkg/duration"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Planner строит оглавление плана.
type Planner interface {
	PlanChapters(ctx context.Context, req service.PlanRequest) (*model.Outline, error)
}

// PlanStore сохраняет и восстанавливает планы.
type PlanStore interface {
	SavePlan(ctx context.Context, plan *model.Plan) error
	// LoadPlan возвращает model.ErrPlanNotFound, если плана нет или он поврежден.
	LoadPlan(ctx context.Context, planID string) (*model.Plan, error)
}

// RegistryConfig - настройки реестра планов.
type RegistryConfig struct {
	ChapterTimeout time.Duration
	OutlineTimeout time.Duration
}

// CreatePlanRequest - запрос на создание плана.
type CreatePlanRequest struct {
	Topic    string
	Category string
	Length   string
	Style    model.ScriptStyle
	Analysis *model.AnalysisResult
}

// Session - план и его контроллер.
type Session struct {
	Plan       *PlanAggregate
	Controller *Controller
}

// Registry держит активные планы и восстанавливает их из хранилища.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	planner   Planner
	generator service.ChapterScriptGenerator
	store     PlanStore
	sinks     []EventSink
	cfg       RegistryConfig
	logger    *zap.Logger
}

// NewRegistry создает реестр. Каждое изменение состояния главы сохраняется в store
// и передается в sinks.
func NewRegistry(planner Planner, generator service.ChapterScriptGenerator, store PlanStore, cfg RegistryConfig, logger *zap.Logger, sinks ...EventSink) *Registry {
	if cfg.ChapterTimeout <= 0 {
		cfg.ChapterTimeout = DefaultChapterTimeout
	}
	if cfg.OutlineTimeout <= 0 {
		cfg.OutlineTimeout = DefaultChapterTimeout
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		planner:   planner,
		generator: generator,
		store:     store,
		sinks:     sinks,
		cfg:       cfg,
		logger:    logger.Named("Registry"),
	}
}

// Create разбирает длительность, запрашивает оглавление и создает план с главами в idle.
func (r *Registry) Create(ctx context.Context, req CreatePlanRequest) (*Session, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", model.ErrInvalidInput)
	}
	totalMinutes := duration.ParseMinutes(req.Length)
	if err := service.CheckTotalMinutes(totalMinutes); err != nil {
		return nil, err
	}

	planCtx, cancel := context.WithTimeout(ctx, r.cfg.OutlineTimeout)
	defer cancel()

	outline, err := r.planner.PlanChapters(planCtx, service.PlanRequest{
		Topic:        req.Topic,
		Category:     req.Category,
		Style:        req.Style,
		Length:       req.Length,
		TotalMinutes: totalMinutes,
		Analysis:     req.Analysis,
	})
	if err != nil {
		if errors.Is(planCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, model.ErrContractViolation) {
			return nil, fmt.Errorf("%w: outline after %s: %v", model.ErrGenerationTimeout, r.cfg.OutlineTimeout, err)
		}
		return nil, fmt.Errorf("plan chapters: %w", err)
	}

	now := time.Now().UTC()
	plan := &model.Plan{
		ID:           uuid.NewString(),
		Topic:        req.Topic,
		Category:     req.Category,
		Style:        req.Style,
		TargetLength: req.Length,
		TotalMinutes: totalMinutes,
		NewIntent:    outline.NewIntent,
		Characters:   outline.Characters,
		Chapters:     make([]model.Chapter, len(outline.Chapters)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i, stub := range outline.Chapters {
		plan.Chapters[i] = model.Chapter{ChapterStub: stub, State: model.ChapterIdle}
	}

	agg, err := NewPlanAggregate(plan)
	if err != nil {
		return nil, err
	}
	if err := r.store.SavePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}

	session := r.newSession(agg)
	r.mu.Lock()
	r.sessions[plan.ID] = session
	r.mu.Unlock()

	r.logger.Info("Plan created",
		zap.String("plan_id", plan.ID),
		zap.String("topic", plan.Topic),
		zap.Int("total_minutes", totalMinutes),
		zap.Int("chapters", len(plan.Chapters)),
		zap.Int("characters", len(plan.Characters)),
	)
	return session, nil
}

// Get возвращает активный план или восстанавливает его из хранилища.
func (r *Registry) Get(ctx context.Context, planID string) (*Session, error) {
	r.mu.Lock()
	if s, ok := r.sessions[planID]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	plan, err := r.store.LoadPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	agg, err := NewPlanAggregate(plan)
	if err != nil {
		r.logger.Warn("Stored plan is invalid", zap.String("plan_id", planID), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", model.ErrPlanNotFound, planID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[planID]; ok {
		return s, nil
	}
	s := r.newSession(agg)
	r.sessions[planID] = s
	r.logger.Info("Plan restored", zap.String("plan_id", planID), zap.Int("chapters", agg.Len()))
	return s, nil
}

func (r *Registry) newSession(agg *PlanAggregate) *Session {
	sinks := make([]EventSink, 0, len(r.sinks)+1)
	sinks = append(sinks, SinkFunc(func(ctx context.Context, _ StateEvent) error {
		snapshot := agg.Snapshot()
		return r.store.SavePlan(ctx, &snapshot)
	}))
	sinks = append(sinks, r.sinks...)

	return &Session{
		Plan:       agg,
		Controller: NewController(agg, r.generator, r.cfg.ChapterTimeout, r.logger, sinks...),
	}
}
