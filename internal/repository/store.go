package repository

import (
	"context"
	"errors"
)

// ErrStoreUnavailable - хранилище недоступно.
var ErrStoreUnavailable = errors.New("store unavailable")

// Store - ключ-значение хранилище для планов и полей формы.
type Store interface {
	// Load возвращает значение и признак его наличия.
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
