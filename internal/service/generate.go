package service

import (
	"context"
	"errors"
	"fmt"

	"chapter-server/internal/ai"
	"chapter-server/internal/model"
)

// generateJSON выполняет запрос и разбирает ответ. Неразбираемый ответ - нарушение контракта.
func generateJSON[T any](ctx context.Context, client ai.Client, stage string, req ai.Request) (*T, ai.UsageInfo, error) {
	text, usage, err := client.Generate(ctx, req)
	if err != nil {
		return nil, usage, fmt.Errorf("%s: %w", stage, err)
	}

	out, err := ai.DecodeJSON[T](text)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, ai.ErrNoJSON) {
			reason = "response has no JSON object"
		}
		return nil, usage, model.NewContractViolation(stage, "body", reason)
	}
	return out, usage, nil
}
