package api

import (
	"context"

	"chapter-server/internal/ai"
	"chapter-server/internal/model"
	"chapter-server/internal/repository"
	"chapter-server/internal/workflow"
	"chapter-server/pkg/taskmanager"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sessions создает и находит планы.
type Sessions interface {
	Create(ctx context.Context, req workflow.CreatePlanRequest) (*workflow.Session, error)
	Get(ctx context.Context, planID string) (*workflow.Session, error)
}

// Analyzer анализирует расшифровки и предлагает идеи.
type Analyzer interface {
	AnalyzeTranscript(ctx context.Context, transcript, category, videoTitle string) (*model.AnalysisResult, error)
	SuggestIdeas(ctx context.Context, analysis *model.AnalysisResult, category, keyword string) ([]string, error)
}

// ClientStore хранит поля формы и журнал ошибок клиента.
type ClientStore interface {
	SaveInputs(ctx context.Context, clientID string, in repository.FormInputs) error
	LoadInputs(ctx context.Context, clientID string) (repository.FormInputs, error)
	AppendError(ctx context.Context, clientID string, entry repository.ErrorEntry) error
	Errors(ctx context.Context, clientID string) ([]repository.ErrorEntry, error)
}

// Tasks запускает фоновые задачи генерации.
type Tasks interface {
	Submit(ctx context.Context, fn taskmanager.TaskFunc, opts taskmanager.SubmitOptions) (uuid.UUID, error)
	GetTask(taskID uuid.UUID) (taskmanager.Task, error)
	CancelTask(taskID uuid.UUID) error
}

// Handler обслуживает HTTP API.
type Handler struct {
	sessions   Sessions
	analyzer   Analyzer
	provider   ai.Client
	clients    ClientStore
	tasks      Tasks
	categories []string
	logger     *zap.Logger
}

// Deps - зависимости Handler.
type Deps struct {
	Sessions   Sessions
	Analyzer   Analyzer
	Provider   ai.Client
	Clients    ClientStore
	Tasks      Tasks
	Categories []string
}

// NewHandler создает обработчик API.
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{
		sessions:   deps.Sessions,
		analyzer:   deps.Analyzer,
		provider:   deps.Provider,
		clients:    deps.Clients,
		tasks:      deps.Tasks,
		categories: deps.Categories,
		logger:     logger.Named("API"),
	}
}

// recordError добавляет запись в журнал ошибок клиента. Без X-Client-ID журнал не ведется.
func (h *Handler) recordError(ctx context.Context, clientID string, entry repository.ErrorEntry) {
	if clientID == "" || h.clients == nil {
		return
	}
	if err := h.clients.AppendError(ctx, clientID, entry); err != nil {
		h.logger.Warn("Failed to append client error log",
			zap.String("client_id", clientID),
			zap.String("stage", entry.Stage),
			zap.Error(err),
		)
	}
}
