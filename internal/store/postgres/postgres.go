// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/svcbackup/internal/model"
	"github.com/alfredjeanlab/svcbackup/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// orderSchemaVersion is the last migration owned by the order tables.
// Uninstalling the module migrates back down to it.
const orderSchemaVersion = 1

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time checks.
var (
	_ store.Store    = (*PostgresStore)(nil)
	_ store.Migrator = (*PostgresStore)(nil)
)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	s, err := Open(databaseURL)
	if err != nil {
		return nil, err
	}
	if err := s.MigrateUp(); err != nil {
		s.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Open connects and pings the database without touching the schema.
func Open(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests and by callers that
// manage their own pool.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) migrator() (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(s.db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// MigrateUp applies all pending migrations.
func (s *PostgresStore) MigrateUp() error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrateDown drops the service tables by migrating back to the order schema.
func (s *PostgresStore) MigrateDown() error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Migrate(orderSchemaVersion); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateService(ctx context.Context, svc *model.Service) error {
	return queryCreateService(ctx, s.db, svc)
}

func (s *PostgresStore) GetService(ctx context.Context, id int64) (*model.Service, error) {
	return queryGetService(ctx, s.db, id)
}

func (s *PostgresStore) ListServices(ctx context.Context) ([]*model.Service, error) {
	return queryListServices(ctx, s.db)
}

func (s *PostgresStore) TouchService(ctx context.Context, id int64, at time.Time) error {
	return queryTouchService(ctx, s.db, id, at)
}

func (s *PostgresStore) UpdateServiceConfig(ctx context.Context, id int64, config json.RawMessage, at time.Time) error {
	return queryUpdateServiceConfig(ctx, s.db, id, config, at)
}

func (s *PostgresStore) DeleteService(ctx context.Context, id int64) error {
	return queryDeleteService(ctx, s.db, id)
}

func (s *PostgresStore) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return queryGetOrder(ctx, s.db, id)
}

func (s *PostgresStore) GetOrderByService(ctx context.Context, serviceID int64) (*model.Order, error) {
	return queryGetOrderByService(ctx, s.db, serviceID)
}

func (s *PostgresStore) SwapOrderService(ctx context.Context, orderID int64, old, next *int64) error {
	return querySwapOrderService(ctx, s.db, orderID, old, next)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return queryGetProduct(ctx, s.db, id)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, serviceID int64) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, serviceID)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateService(ctx context.Context, svc *model.Service) error {
	return queryCreateService(ctx, s.tx, svc)
}

func (s *txStore) GetService(ctx context.Context, id int64) (*model.Service, error) {
	return queryGetService(ctx, s.tx, id)
}

func (s *txStore) ListServices(ctx context.Context) ([]*model.Service, error) {
	return queryListServices(ctx, s.tx)
}

func (s *txStore) TouchService(ctx context.Context, id int64, at time.Time) error {
	return queryTouchService(ctx, s.tx, id, at)
}

func (s *txStore) UpdateServiceConfig(ctx context.Context, id int64, config json.RawMessage, at time.Time) error {
	return queryUpdateServiceConfig(ctx, s.tx, id, config, at)
}

func (s *txStore) DeleteService(ctx context.Context, id int64) error {
	return queryDeleteService(ctx, s.tx, id)
}

func (s *txStore) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return queryGetOrder(ctx, s.tx, id)
}

func (s *txStore) GetOrderByService(ctx context.Context, serviceID int64) (*model.Order, error) {
	return queryGetOrderByService(ctx, s.tx, serviceID)
}

func (s *txStore) SwapOrderService(ctx context.Context, orderID int64, old, next *int64) error {
	return querySwapOrderService(ctx, s.tx, orderID, old, next)
}

func (s *txStore) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return queryGetProduct(ctx, s.tx, id)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, serviceID int64) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, serviceID)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Ping is a no-op inside a transaction.
func (s *txStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
