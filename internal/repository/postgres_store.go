package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Migrations - SQL миграции таблицы kv_entries.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsPath - каталог миграций внутри Migrations.
const MigrationsPath = "migrations"

const (
	getEntryQuery    = `SELECT key, value, updated_at FROM kv_entries WHERE key = $1`
	upsertEntryQuery = `
        INSERT INTO kv_entries (key, value, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            updated_at = NOW()
    `
	deleteEntryQuery = `DELETE FROM kv_entries WHERE key = $1`
)

// DBTX - общий интерфейс пула и транзакции pgx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type kvEntry struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PostgresStore хранит значения в таблице kv_entries.
type PostgresStore struct {
	db     DBTX
	logger *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore создает хранилище поверх пула или транзакции.
func NewPostgresStore(db DBTX, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.Named("PostgresStore"),
	}
}

func (s *PostgresStore) Load(ctx context.Context, key string) (string, bool, error) {
	var entry kvEntry
	if err := pgxscan.Get(ctx, s.db, &entry, getEntryQuery, key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		s.logger.Error("Error getting kv entry", zap.String("key", key), zap.Error(err))
		return "", false, fmt.Errorf("%w: get %s: %v", ErrStoreUnavailable, key, err)
	}
	return entry.Value, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, key, value string) error {
	if _, err := s.db.Exec(ctx, upsertEntryQuery, key, value); err != nil {
		s.logger.Error("Error upserting kv entry", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: upsert %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, deleteEntryQuery, key); err != nil {
		s.logger.Error("Error deleting kv entry", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: delete %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}
