// Package export writes periodic JSONL snapshots of every service row to
// off-site destinations.
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/svcbackup/internal/model"
)

// Source is the subset of store.Store an export reads from.
type Source interface {
	ListServices(ctx context.Context) ([]*model.Service, error)
	GetOrderByService(ctx context.Context, serviceID int64) (*model.Order, error)
}

// header is the first JSONL record written by WriteJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	ServiceCount int       `json:"service_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// serviceRecord is a service row with the order that owns it.
type serviceRecord struct {
	*model.Service
	OrderID     *int64 `json:"order_id,omitempty"`
	OrderStatus string `json:"order_status,omitempty"`
}

// WriteJSONL writes every service from src as JSONL to w, sorted by id.
// Services whose order has gone away are exported without order fields.
func WriteJSONL(ctx context.Context, src Source, w io.Writer) error {
	services, err := src.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}
	sort.Slice(services, func(i, j int) bool {
		return services[i].ID < services[j].ID
	})

	records := make([]serviceRecord, 0, len(services))
	for _, svc := range services {
		rec := serviceRecord{Service: svc}
		order, err := src.GetOrderByService(ctx, svc.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("get order for service %d: %w", svc.ID, err)
		default:
			rec.OrderID = &order.ID
			rec.OrderStatus = string(order.Status)
		}
		records = append(records, rec)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		ServiceCount: len(records),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, rec := range records {
		if err := enc.Encode(record{Type: "service", Data: rec}); err != nil {
			return fmt.Errorf("encode service %d: %w", rec.ID, err)
		}
	}
	return nil
}
