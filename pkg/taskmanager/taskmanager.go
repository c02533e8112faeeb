package taskmanager

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTooManyTasks = errors.New("too many active tasks")
	ErrTaskFinished = errors.New("task already finished")
	ErrShuttingDown = errors.New("task manager is shutting down")
)

// TaskStatus - статус фоновой задачи.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Finished сообщает, что задача больше не выполняется.
func (s TaskStatus) Finished() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// TaskFunc - работа, выполняемая в задаче.
type TaskFunc func(ctx context.Context) (any, error)

// TaskCallback вызывается один раз после завершения задачи.
type TaskCallback func(task Task)

// SubmitOptions - метаданные задачи.
type SubmitOptions struct {
	Owner    string
	Labels   map[string]string
	OnFinish TaskCallback
}

// Task - снимок состояния задачи.
type Task struct {
	ID        uuid.UUID         `json:"id"`
	Owner     string            `json:"owner,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Status    TaskStatus        `json:"status"`
	Message   string            `json:"message,omitempty"`
	Result    any               `json:"result,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type entry struct {
	task     Task
	cancel   context.CancelFunc
	onFinish TaskCallback
}

// Config - настройки TaskManager.
type Config struct {
	MaxTasks int
}

// TaskManager выполняет фоновые задачи с отменой по ID.
type TaskManager struct {
	mu       sync.RWMutex
	tasks    map[uuid.UUID]*entry
	maxTasks int
	closing  chan struct{}
	closed   bool
	wg       sync.WaitGroup
}

// New создает TaskManager. MaxTasks <= 0 означает 10.
func New(cfg Config) *TaskManager {
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10
	}
	return &TaskManager{
		tasks:    make(map[uuid.UUID]*entry),
		maxTasks: maxTasks,
		closing:  make(chan struct{}),
	}
}

// Submit запускает задачу. Контекст задачи не зависит от ctx запроса, из ctx берется только логгер.
func (tm *TaskManager) Submit(ctx context.Context, fn TaskFunc, opts SubmitOptions) (uuid.UUID, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.closed {
		return uuid.Nil, ErrShuttingDown
	}
	active := 0
	for _, e := range tm.tasks {
		if !e.task.Status.Finished() {
			active++
		}
	}
	if active >= tm.maxTasks {
		return uuid.Nil, fmt.Errorf("%w: limit %d", ErrTooManyTasks, tm.maxTasks)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	taskCtx := log.Ctx(ctx).WithContext(baseCtx)

	now := time.Now()
	e := &entry{
		task: Task{
			ID:        uuid.New(),
			Owner:     opts.Owner,
			Labels:    maps.Clone(opts.Labels),
			Status:    TaskStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel:   cancel,
		onFinish: opts.OnFinish,
	}
	tm.tasks[e.task.ID] = e

	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		defer cancel()
		tm.run(taskCtx, e, fn)
	}()

	return e.task.ID, nil
}

func (tm *TaskManager) run(ctx context.Context, e *entry, fn TaskFunc) {
	id := e.task.ID.String()
	tm.setStatus(e, TaskStatusRunning, "", nil)
	log.Ctx(ctx).Debug().Str("taskID", id).Msg("task started")

	result, err := fn(ctx)

	var final Task
	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		msg := "cancelled"
		if err != nil {
			msg = err.Error()
		}
		log.Ctx(ctx).Info().Str("taskID", id).Msg("task cancelled")
		final = tm.setStatus(e, TaskStatusCancelled, msg, nil)
	case err != nil:
		log.Ctx(ctx).Error().Err(err).Str("taskID", id).Msg("task failed")
		final = tm.setStatus(e, TaskStatusFailed, err.Error(), nil)
	default:
		log.Ctx(ctx).Info().Str("taskID", id).Msg("task completed")
		final = tm.setStatus(e, TaskStatusCompleted, "", result)
	}

	if e.onFinish != nil {
		e.onFinish(final)
	}
}

func (tm *TaskManager) setStatus(e *entry, status TaskStatus, message string, result any) Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	e.task.Status = status
	e.task.Message = message
	if result != nil {
		e.task.Result = result
	}
	e.task.UpdatedAt = time.Now()
	return e.task
}

// GetTask возвращает снимок задачи.
func (tm *TaskManager) GetTask(taskID uuid.UUID) (Task, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	e, ok := tm.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	t := e.task
	t.Labels = maps.Clone(e.task.Labels)
	return t, nil
}

// CancelTask отменяет контекст задачи. Статус станет cancelled, когда работа вернет управление.
func (tm *TaskManager) CancelTask(taskID uuid.UUID) error {
	tm.mu.RLock()
	e, ok := tm.tasks[taskID]
	var finished bool
	if ok {
		finished = e.task.Status.Finished()
	}
	tm.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if finished {
		return fmt.Errorf("%w: %s", ErrTaskFinished, taskID)
	}
	e.cancel()
	return nil
}

// CleanupTasks удаляет завершенные задачи старше age.
func (tm *TaskManager) CleanupTasks(age time.Duration) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, e := range tm.tasks {
		if e.task.Status.Finished() && now.Sub(e.task.UpdatedAt) > age {
			delete(tm.tasks, id)
			removed++
		}
	}
	return removed
}

// StartJanitor периодически удаляет старые задачи до закрытия менеджера или отмены ctx.
func (tm *TaskManager) StartJanitor(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tm.closing:
				return
			case <-ticker.C:
				if n := tm.CleanupTasks(retention); n > 0 {
					log.Ctx(ctx).Debug().Int("removed", n).Msg("finished tasks cleaned up")
				}
			}
		}
	}()
}

// Shutdown отменяет незавершенные задачи и ждет их завершения до отмены ctx.
func (tm *TaskManager) Shutdown(ctx context.Context) error {
	tm.mu.Lock()
	if !tm.closed {
		tm.closed = true
		close(tm.closing)
	}
	for _, e := range tm.tasks {
		if !e.task.Status.Finished() {
			e.cancel()
		}
	}
	tm.mu.Unlock()

	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for tasks: %w", ctx.Err())
	}
}
