package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chapter-server/internal/model"
	"chapter-server/internal/service"

	"go.uber.org/zap"
)

// DefaultChapterTimeout - предельное время генерации одной главы.
const DefaultChapterTimeout = 180 * time.Second

const sinkTimeout = 5 * time.Second

// StartOptions - параметры запуска генерации главы.
type StartOptions struct {
	// Regenerate разрешает повторную генерацию главы, у которой уже есть сценарий.
	Regenerate bool
}

// Attempt - разрешенная попытка генерации главы.
type Attempt struct {
	Index     int
	ChapterID string
	token     uint64
	chapter   model.Chapter
}

// Controller следит за очередностью генерации глав одного плана.
type Controller struct {
	plan      *PlanAggregate
	generator service.ChapterScriptGenerator
	timeout   time.Duration
	sinks     []EventSink
	logger    *zap.Logger
}

// NewController создает контроллер. timeout <= 0 означает DefaultChapterTimeout.
func NewController(plan *PlanAggregate, generator service.ChapterScriptGenerator, timeout time.Duration, logger *zap.Logger, sinks ...EventSink) *Controller {
	if timeout <= 0 {
		timeout = DefaultChapterTimeout
	}
	return &Controller{
		plan:      plan,
		generator: generator,
		timeout:   timeout,
		sinks:     sinks,
		logger:    logger.Named("Controller").With(zap.String("plan_id", plan.ID())),
	}
}

// Plan возвращает агрегат плана.
func (c *Controller) Plan() *PlanAggregate {
	return c.plan
}

// State возвращает состояние главы.
func (c *Controller) State(index int) (model.ChapterState, error) {
	return c.plan.State(index)
}

// Begin синхронно проверяет очередность и переводит главу в generating.
// При отказе ничего не меняется и генератор не вызывается.
func (c *Controller) Begin(index int, opts StartOptions) (*Attempt, error) {
	token, ch, err := c.plan.begin(index, opts.Regenerate)
	if err != nil {
		chapterRejections.WithLabelValues(rejectionReason(err)).Inc()
		c.logger.Debug("Chapter generation rejected", zap.Int("index", index), zap.Error(err))
		return nil, err
	}

	chapterTransitions.WithLabelValues(string(model.ChapterGenerating)).Inc()
	c.logger.Info("Chapter generation started",
		zap.Int("index", index),
		zap.String("chapter_id", ch.ID),
		zap.Bool("regenerate", opts.Regenerate),
	)
	c.emit(context.Background(), index, ch)

	return &Attempt{Index: index, ChapterID: ch.ID, token: token, chapter: ch}, nil
}

// Run выполняет попытку с ограничением по времени. Ответ, пришедший после таймаута
// или отмены, отбрасывается. Возвращает ошибку генерации, если глава не получила сценарий.
func (c *Controller) Run(ctx context.Context, at *Attempt) error {
	if at == nil {
		return fmt.Errorf("%w: attempt is nil", model.ErrInvalidInput)
	}

	snapshot := c.plan.Snapshot()
	req := service.ScriptRequest{
		Chapter:     at.chapter.ChapterStub,
		Characters:  snapshot.Characters,
		Topic:       snapshot.Topic,
		Category:    snapshot.Category,
		AllChapters: snapshot.Stubs(),
		Style:       snapshot.Style,
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		res *service.ScriptResult
		err error
	}
	done := make(chan outcome, 1)
	started := time.Now()

	go func() {
		res, err := c.generator.GenerateChapterScript(runCtx, req)
		done <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-runCtx.Done():
		out.err = runCtx.Err()
	}

	if out.err == nil && runCtx.Err() != nil {
		out.err = runCtx.Err()
	}
	if out.err != nil {
		err := c.classify(ctx, runCtx, out.err)
		chapterGenerationDuration.WithLabelValues("failed").Observe(time.Since(started).Seconds())
		c.failAttempt(at, err)
		return err
	}
	if out.res == nil {
		err := model.NewContractViolation(model.StageChapterScript, "body", "empty result")
		c.failAttempt(at, err)
		return err
	}

	ch, err := c.plan.attachScript(at.Index, at.token, out.res.Lines, out.res.Issues)
	if err != nil {
		if errors.Is(err, model.ErrStaleResponse) {
			staleResponses.Inc()
			c.logger.Warn("Discarding stale chapter script", zap.String("chapter_id", at.ChapterID))
			return err
		}
		c.failAttempt(at, err)
		return err
	}

	chapterGenerationDuration.WithLabelValues("done").Observe(time.Since(started).Seconds())
	chapterTransitions.WithLabelValues(string(model.ChapterDone)).Inc()
	c.logger.Info("Chapter script attached",
		zap.String("chapter_id", ch.ID),
		zap.Int("lines", len(ch.Script)),
		zap.Int("quality_issues", len(ch.QualityIssues)),
		zap.Duration("elapsed", time.Since(started)),
	)
	c.emit(ctx, at.Index, ch)
	return nil
}

// Generate - Begin и Run одним вызовом.
func (c *Controller) Generate(ctx context.Context, index int, opts StartOptions) error {
	at, err := c.Begin(index, opts)
	if err != nil {
		return err
	}
	return c.Run(ctx, at)
}

// Abandon завершает попытку неудачей, не вызывая генератор.
// Используется, когда попытку не удалось запустить в фоне.
func (c *Controller) Abandon(at *Attempt, cause error) {
	if at == nil {
		return
	}
	c.failAttempt(at, cause)
}

// classify приводит ошибки контекста к ErrGenerationTimeout и ErrGenerationCanceled.
func (c *Controller) classify(parent, runCtx context.Context, err error) error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return fmt.Errorf("%w: %v", model.ErrGenerationCanceled, err)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", model.ErrGenerationTimeout, c.timeout)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", model.ErrGenerationCanceled, err)
	default:
		return err
	}
}

func (c *Controller) failAttempt(at *Attempt, cause error) {
	snapshot := c.plan.Snapshot()
	failure := &model.ChapterFailure{
		ChapterIndex: at.Index + 1,
		ChapterID:    at.chapter.ID,
		ChapterTitle: at.chapter.Title,
		PlanID:       snapshot.ID,
		Stage:        model.StageChapterScript,
		Cause:        model.ClassifyError(cause),
		Message:      cause.Error(),
		Topic:        snapshot.Topic,
		Category:     snapshot.Category,
		OccurredAt:   time.Now().UTC(),
	}

	ch, err := c.plan.fail(at.Index, at.token, failure)
	if err != nil {
		staleResponses.Inc()
		c.logger.Warn("Discarding stale chapter failure", zap.String("chapter_id", at.ChapterID), zap.Error(cause))
		return
	}

	chapterTransitions.WithLabelValues(string(ch.State)).Inc()
	c.logger.Error("Chapter generation failed",
		zap.String("chapter_id", ch.ID),
		zap.String("cause", string(failure.Cause)),
		zap.String("state", string(ch.State)),
		zap.Error(cause),
	)
	c.emit(context.Background(), at.Index, ch)
}

func (c *Controller) emit(ctx context.Context, index int, ch model.Chapter) {
	if len(c.sinks) == 0 {
		return
	}
	event := newEvent(c.plan.ID(), index, ch, time.Now().UTC())

	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	for _, sink := range c.sinks {
		if err := sink.Publish(sinkCtx, event); err != nil {
			c.logger.Warn("Failed to publish chapter state", zap.String("chapter_id", ch.ID), zap.String("state", string(ch.State)), zap.Error(err))
		}
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, model.ErrChapterNotFound):
		return "not_found"
	case errors.Is(err, model.ErrPlanBusy):
		return "plan_busy"
	case errors.Is(err, model.ErrChapterBusy):
		return "chapter_busy"
	case errors.Is(err, model.ErrChapterNotEligible):
		return "not_eligible"
	case errors.Is(err, model.ErrChapterAlreadyDone):
		return "already_done"
	default:
		return "other"
	}
}
