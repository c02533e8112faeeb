package model

import (
	"errors"
	"fmt"
)

var (
	ErrPlanNotFound       = errors.New("plan not found")
	ErrChapterNotFound    = errors.New("chapter not found")
	ErrChapterNotEligible = errors.New("previous chapter has no script yet")
	ErrChapterBusy        = errors.New("chapter is already generating")
	ErrPlanBusy           = errors.New("another chapter of the plan is generating")
	ErrChapterAlreadyDone = errors.New("chapter already has a script")
	ErrStaleResponse      = errors.New("stale generation response")
	ErrGenerationTimeout  = errors.New("chapter generation timed out")
	ErrGenerationCanceled = errors.New("chapter generation canceled")
	ErrContractViolation  = errors.New("generation response violates contract")
	ErrInvalidInput       = errors.New("invalid input")
)

// ContractViolationError описывает нарушение контракта ответа генератора.
type ContractViolationError struct {
	Stage  string // outline, chapter_script, analysis, ideas
	Field  string
	Reason string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Field, e.Reason)
}

func (e *ContractViolationError) Unwrap() error {
	return ErrContractViolation
}

// NewContractViolation создает ошибку нарушения контракта.
func NewContractViolation(stage, field, reason string, args ...any) error {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}
	return &ContractViolationError{Stage: stage, Field: field, Reason: reason}
}
