// Package client provides a transport-agnostic interface for the svcbackup
// server and HTTP/JSON and gRPC implementations of it.
package client

import (
	"context"

	"github.com/alfredjeanlab/svcbackup/internal/model"
)

// Client is the interface that svcb CLI commands use to talk to the server.
// It is implemented by HTTPClient (default) and GRPCClient.
type Client interface {
	// Order-facing lifecycle
	CreateService(ctx context.Context, orderID int64) (map[string]any, error)
	GetService(ctx context.Context, orderID int64) (map[string]any, error)
	Action(ctx context.Context, orderID int64, action string) (bool, error)

	// Admin API
	AdminUpdate(ctx context.Context, data map[string]any) (bool, error)
	AdminCall(ctx context.Context, method string, data map[string]any) (any, error)

	// Introspection
	GetEvents(ctx context.Context, serviceID int64) ([]*model.Event, error)
	ListPlugins(ctx context.Context) ([]string, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}
