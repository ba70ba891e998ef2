package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/alfredjeanlab/svcbackup/internal/model"
	"github.com/alfredjeanlab/svcbackup/internal/store"
)

// mockStore is an in-memory store.Store for handler tests.
type mockStore struct {
	mu       sync.Mutex
	services map[int64]*model.Service
	orders   map[int64]*model.Order
	products map[int64]*model.Product
	events   []*model.Event
	nextID   int64

	pingErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		services: make(map[int64]*model.Service),
		orders:   make(map[int64]*model.Order),
		products: make(map[int64]*model.Product),
	}
}

func (m *mockStore) CreateService(_ context.Context, svc *model.Service) error {
	m.nextID++
	svc.ID = m.nextID
	clone := *svc
	m.services[svc.ID] = &clone
	return nil
}

func (m *mockStore) GetService(_ context.Context, id int64) (*model.Service, error) {
	svc, ok := m.services[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *svc
	return &clone, nil
}

func (m *mockStore) ListServices(context.Context) ([]*model.Service, error) {
	var out []*model.Service
	for _, svc := range m.services {
		out = append(out, svc)
	}
	return out, nil
}

func (m *mockStore) TouchService(_ context.Context, id int64, at time.Time) error {
	svc, ok := m.services[id]
	if !ok {
		return sql.ErrNoRows
	}
	clone := *svc
	clone.UpdatedAt = at
	m.services[id] = &clone
	return nil
}

func (m *mockStore) UpdateServiceConfig(_ context.Context, id int64, config json.RawMessage, at time.Time) error {
	svc, ok := m.services[id]
	if !ok {
		return sql.ErrNoRows
	}
	clone := *svc
	clone.Config, clone.UpdatedAt = config, at
	m.services[id] = &clone
	return nil
}

func (m *mockStore) DeleteService(_ context.Context, id int64) error {
	if _, ok := m.services[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.services, id)
	return nil
}

func (m *mockStore) GetOrder(_ context.Context, id int64) (*model.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *o
	return &clone, nil
}

func (m *mockStore) GetOrderByService(_ context.Context, serviceID int64) (*model.Order, error) {
	for _, o := range m.orders {
		if o.ServiceID != nil && *o.ServiceID == serviceID {
			clone := *o
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStore) SwapOrderService(_ context.Context, orderID int64, old, next *int64) error {
	o, ok := m.orders[orderID]
	if !ok || !sameLink(o.ServiceID, old) {
		return sql.ErrNoRows
	}
	if next == nil {
		o.ServiceID = nil
	} else {
		id := *next
		o.ServiceID = &id
	}
	return nil
}

func (m *mockStore) GetProduct(_ context.Context, id int64) (*model.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (m *mockStore) RecordEvent(_ context.Context, e *model.Event) error {
	e.ID = int64(len(m.events) + 1)
	m.events = append(m.events, e)
	return nil
}

func (m *mockStore) GetEvents(_ context.Context, serviceID int64) ([]*model.Event, error) {
	var out []*model.Event
	for _, e := range m.events {
		if e.ServiceID == serviceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m)
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

func (m *mockStore) Close() error { return nil }

func sameLink(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
