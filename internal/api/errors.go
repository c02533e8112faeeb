package api

import (
	"errors"
	"net/http"

	"chapter-server/internal/ai"
	"chapter-server/internal/model"
	"chapter-server/internal/repository"
	"chapter-server/pkg/taskmanager"

	"github.com/gin-gonic/gin"
)

// Коды ошибок в ответах API.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeNotFound          = "not_found"
	ErrCodeConflict          = "conflict"
	ErrCodeContractViolation = "contract_violation"
	ErrCodeProvider          = "provider_error"
	ErrCodeTimeout           = "timeout"
	ErrCodeTooManyTasks      = "too_many_tasks"
	ErrCodeUnavailable       = "unavailable"
	ErrCodeInternal          = "internal"
)

// ErrorResponse - тело ответа с ошибкой.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleServiceError(c *gin.Context, err error) {
	var status int
	var resp ErrorResponse

	switch {
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		resp = ErrorResponse{Code: ErrCodeBadRequest, Message: err.Error()}
	case errors.Is(err, model.ErrPlanNotFound),
		errors.Is(err, model.ErrChapterNotFound),
		errors.Is(err, taskmanager.ErrTaskNotFound):
		status = http.StatusNotFound
		resp = ErrorResponse{Code: ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, model.ErrChapterNotEligible),
		errors.Is(err, model.ErrChapterBusy),
		errors.Is(err, model.ErrPlanBusy),
		errors.Is(err, model.ErrChapterAlreadyDone),
		errors.Is(err, model.ErrStaleResponse),
		errors.Is(err, taskmanager.ErrTaskFinished):
		status = http.StatusConflict
		resp = ErrorResponse{Code: ErrCodeConflict, Message: err.Error()}
	case errors.Is(err, model.ErrContractViolation):
		status = http.StatusUnprocessableEntity
		resp = ErrorResponse{Code: ErrCodeContractViolation, Message: err.Error()}
	case errors.Is(err, model.ErrGenerationTimeout):
		status = http.StatusGatewayTimeout
		resp = ErrorResponse{Code: ErrCodeTimeout, Message: err.Error()}
	case errors.Is(err, ai.ErrAIGenerationFailed):
		status = http.StatusBadGateway
		resp = ErrorResponse{Code: ErrCodeProvider, Message: err.Error()}
	case errors.Is(err, taskmanager.ErrTooManyTasks):
		status = http.StatusTooManyRequests
		resp = ErrorResponse{Code: ErrCodeTooManyTasks, Message: err.Error()}
	case errors.Is(err, taskmanager.ErrShuttingDown),
		errors.Is(err, repository.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		resp = ErrorResponse{Code: ErrCodeUnavailable, Message: err.Error()}
	default:
		_ = c.Error(err)
		status = http.StatusInternalServerError
		resp = ErrorResponse{Code: ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: msg})
}
