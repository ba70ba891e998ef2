package export

import (
	"context"
	"database/sql"

	"github.com/alfredjeanlab/svcbackup/internal/model"
)

// mockSource is a minimal in-memory Source for export tests.
type mockSource struct {
	services []*model.Service
	orders   map[int64]*model.Order // keyed by service id
	err      error
}

func newMockSource() *mockSource {
	return &mockSource{orders: make(map[int64]*model.Order)}
}

func (m *mockSource) ListServices(context.Context) ([]*model.Service, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]*model.Service(nil), m.services...), nil
}

func (m *mockSource) GetOrderByService(_ context.Context, serviceID int64) (*model.Order, error) {
	o, ok := m.orders[serviceID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return o, nil
}
