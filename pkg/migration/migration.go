package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// DefaultTable - таблица версий миграций.
const DefaultTable = "schema_migrations"

// Config - источник миграций.
type Config struct {
	FS          fs.FS
	Path        string
	Table       string
	LockTimeout time.Duration
}

// Migrator применяет встроенные SQL миграции к пулу pgx.
type Migrator struct {
	cfg  Config
	pool *pgxpool.Pool
}

// NewMigrator создает Migrator.
func NewMigrator(cfg Config, pool *pgxpool.Pool) *Migrator {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 30 * time.Second
	}
	return &Migrator{cfg: cfg, pool: pool}
}

// Up применяет все новые миграции. Отсутствие изменений не ошибка.
func (m *Migrator) Up(ctx context.Context) error {
	mg, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := mg.Version()
	log.Ctx(ctx).Info().Uint("version", version).Bool("dirty", dirty).Msg("database migrations applied")
	return nil
}

// Down откатывает все миграции.
func (m *Migrator) Down(ctx context.Context) error {
	mg, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	log.Ctx(ctx).Info().Msg("database migrations rolled back")
	return nil
}

// Version возвращает текущую версию схемы. Для пустой базы - 0, false, nil.
func (m *Migrator) Version(ctx context.Context) (uint, bool, error) {
	mg, err := m.open(ctx)
	if err != nil {
		return 0, false, err
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}

func (m *Migrator) open(ctx context.Context) (*migrate.Migrate, error) {
	if err := m.pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	driver, err := postgres.WithInstance(stdlib.OpenDBFromPool(m.pool), &postgres.Config{
		MigrationsTable: m.cfg.Table,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres migration driver: %w", err)
	}

	source, err := iofs.New(m.cfg.FS, m.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open migrations source %s: %w", m.cfg.Path, err)
	}

	mg, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	mg.LockTimeout = m.cfg.LockTimeout
	return mg, nil
}
