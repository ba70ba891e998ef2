package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/svcbackup/internal/model"
)

// Store defines the persistence interface for backup services and the order
// records that own them.
type Store interface {
	// Service CRUD
	CreateService(ctx context.Context, svc *model.Service) error
	GetService(ctx context.Context, id int64) (*model.Service, error)
	ListServices(ctx context.Context) ([]*model.Service, error)
	// TouchService and UpdateServiceConfig write only the columns they name,
	// so concurrent lifecycle actions and config updates do not overwrite
	// each other.
	TouchService(ctx context.Context, id int64, at time.Time) error
	UpdateServiceConfig(ctx context.Context, id int64, config json.RawMessage, at time.Time) error
	DeleteService(ctx context.Context, id int64) error

	// Orders and products (owned by the order engine; read plus service link)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	GetOrderByService(ctx context.Context, serviceID int64) (*model.Order, error)
	// SwapOrderService links order orderID to next only while its link still
	// equals old. A changed link or a missing order gives sql.ErrNoRows.
	SwapOrderService(ctx context.Context, orderID int64, old, next *int64) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, serviceID int64) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// Migrator installs and removes the module schema.
type Migrator interface {
	// MigrateUp applies every pending migration.
	MigrateUp() error
	// MigrateDown rolls back the module tables, leaving the order tables.
	MigrateDown() error
}
