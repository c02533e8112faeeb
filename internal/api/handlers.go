package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"chapter-server/internal/model"
	"chapter-server/internal/repository"
	"chapter-server/internal/workflow"
	"chapter-server/pkg/taskmanager"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const providerPingTimeout = 30 * time.Second

type analysisRequest struct {
	Transcript string `json:"transcript" binding:"required"`
	Category   string `json:"category"`
	VideoTitle string `json:"videoTitle"`
}

type ideasRequest struct {
	Analysis *model.AnalysisResult `json:"analysis" binding:"required"`
	Category string                `json:"category"`
	Keyword  string                `json:"keyword"`
}

type ideasResponse struct {
	Ideas []string `json:"ideas"`
}

type createPlanRequest struct {
	Topic    string                `json:"topic" binding:"required"`
	Category string                `json:"category"`
	Length   string                `json:"length"`
	Style    string                `json:"style"`
	Analysis *model.AnalysisResult `json:"analysis"`
}

// PlanResponse - снимок плана с признаком завершения.
type PlanResponse struct {
	model.Plan
	Completed bool `json:"completed"`
}

type generateRequest struct {
	Regenerate bool `json:"regenerate"`
}

// GenerateResponse - ответ на запуск генерации главы.
type GenerateResponse struct {
	TaskID    uuid.UUID          `json:"taskId"`
	PlanID    string             `json:"planId"`
	ChapterID string             `json:"chapterId"`
	State     model.ChapterState `json:"state"`
}

type providerResponse struct {
	Valid   bool   `json:"valid"`
	Model   string `json:"model"`
	Cause   string `json:"cause,omitempty"`
	Message string `json:"message,omitempty"`
}

type failureResponse struct {
	Failure *model.ChapterFailure `json:"failure"`
	Details string                `json:"details"`
}

type errorsResponse struct {
	Errors []repository.ErrorEntry `json:"errors"`
}

// Health отвечает на проверку живости.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Categories возвращает список категорий из справочника.
func (h *Handler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.categories})
}

// ValidateProvider проверяет ключ и доступность провайдера генерации.
func (h *Handler) ValidateProvider(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), providerPingTimeout)
	defer cancel()

	resp := providerResponse{Valid: true, Model: h.provider.Model()}
	if err := h.provider.Ping(ctx); err != nil {
		h.logger.Warn("Provider validation failed", zap.String("model", resp.Model), zap.Error(err))
		resp.Valid = false
		resp.Cause = string(model.ClassifyError(err))
		resp.Message = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// Analyze анализирует расшифровку видео.
func (h *Handler) Analyze(c *gin.Context) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.analyzer.AnalyzeTranscript(c.Request.Context(), req.Transcript, req.Category, req.VideoTitle)
	if err != nil {
		h.recordError(c.Request.Context(), c.GetHeader(clientIDHeader), repository.ErrorEntry{
			Stage:   model.StageAnalysis,
			Message: err.Error(),
		})
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Ideas предлагает темы для нового видео.
func (h *Handler) Ideas(c *gin.Context) {
	var req ideasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	ideas, err := h.analyzer.SuggestIdeas(c.Request.Context(), req.Analysis, req.Category, req.Keyword)
	if err != nil {
		h.recordError(c.Request.Context(), c.GetHeader(clientIDHeader), repository.ErrorEntry{
			Stage:   model.StageIdeas,
			Message: err.Error(),
		})
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ideasResponse{Ideas: ideas})
}

// CreatePlan строит оглавление и создает план.
func (h *Handler) CreatePlan(c *gin.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	style, err := model.ParseScriptStyle(req.Style)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), workflow.CreatePlanRequest{
		Topic:    strings.TrimSpace(req.Topic),
		Category: req.Category,
		Length:   req.Length,
		Style:    style,
		Analysis: req.Analysis,
	})
	if err != nil {
		h.recordError(c.Request.Context(), c.GetHeader(clientIDHeader), repository.ErrorEntry{
			Stage:   model.StageOutline,
			Message: err.Error(),
		})
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, planResponse(session.Plan))
}

// GetPlan возвращает снимок плана.
func (h *Handler) GetPlan(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("planID"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, planResponse(session.Plan))
}

func planResponse(plan *workflow.PlanAggregate) PlanResponse {
	return PlanResponse{Plan: plan.Snapshot(), Completed: plan.Completed()}
}

// GenerateChapter проверяет право на генерацию синхронно и запускает генерацию в фоне.
func (h *Handler) GenerateChapter(c *gin.Context) {
	var req generateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	ctx := c.Request.Context()
	session, err := h.sessions.Get(ctx, c.Param("planID"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	index, err := session.Plan.IndexOf(c.Param("chapterID"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	attempt, err := session.Controller.Begin(index, workflow.StartOptions{Regenerate: req.Regenerate})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	clientID := c.GetHeader(clientIDHeader)
	planID := session.Plan.ID()
	run := func(taskCtx context.Context) (any, error) {
		if err := session.Controller.Run(taskCtx, attempt); err != nil {
			return nil, err
		}
		ch, err := session.Plan.Chapter(index)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
	onFinish := func(task taskmanager.Task) {
		if task.Status == taskmanager.TaskStatusCompleted {
			return
		}
		ch, err := session.Plan.Chapter(index)
		if err != nil {
			return
		}
		h.recordError(context.Background(), clientID, repository.ErrorEntry{
			PlanID:  planID,
			Stage:   model.StageChapterScript,
			Message: task.Message,
			Failure: ch.LastFailure,
		})
	}

	taskID, err := h.tasks.Submit(ctx, run, taskmanager.SubmitOptions{
		Owner:    clientID,
		Labels:   map[string]string{"plan_id": planID, "chapter_id": attempt.ChapterID},
		OnFinish: onFinish,
	})
	if err != nil {
		session.Controller.Abandon(attempt, err)
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, GenerateResponse{
		TaskID:    taskID,
		PlanID:    planID,
		ChapterID: attempt.ChapterID,
		State:     model.ChapterGenerating,
	})
}

// ChapterFailure возвращает последнюю ошибку главы с текстом для копирования.
func (h *Handler) ChapterFailure(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("planID"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	index, err := session.Plan.IndexOf(c.Param("chapterID"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ch, err := session.Plan.Chapter(index)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if ch.LastFailure == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Code: ErrCodeNotFound, Message: "chapter has no recorded failure"})
		return
	}
	c.JSON(http.StatusOK, failureResponse{Failure: ch.LastFailure, Details: ch.LastFailure.Details()})
}

func parseTaskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("taskID"))
	if err != nil {
		badRequest(c, "invalid task id")
		return uuid.Nil, false
	}
	return id, true
}

// GetTask возвращает состояние фоновой задачи.
func (h *Handler) GetTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	task, err := h.tasks.GetTask(id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// CancelTask отменяет генерацию. Глава переходит в failed с причиной canceled.
func (h *Handler) CancelTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	if err := h.tasks.CancelTask(id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"taskId": id, "status": "cancelling"})
}

// GetInputs возвращает сохраненные поля формы клиента.
func (h *Handler) GetInputs(c *gin.Context) {
	in, err := h.clients.LoadInputs(c.Request.Context(), c.Param("clientID"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

// SaveInputs сохраняет поля формы клиента. Пустые поля удаляются.
func (h *Handler) SaveInputs(c *gin.Context) {
	var in repository.FormInputs
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if in.Style != "" {
		if _, err := model.ParseScriptStyle(in.Style); err != nil {
			h.handleServiceError(c, err)
			return
		}
	}
	if err := h.clients.SaveInputs(c.Request.Context(), c.Param("clientID"), in); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetErrors возвращает журнал последних ошибок клиента.
func (h *Handler) GetErrors(c *gin.Context) {
	entries, err := h.clients.Errors(c.Request.Context(), c.Param("clientID"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if entries == nil {
		entries = []repository.ErrorEntry{}
	}
	c.JSON(http.StatusOK, errorsResponse{Errors: entries})
}
