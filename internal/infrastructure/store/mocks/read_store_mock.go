package mocks

import (
	"context"
	"sync"

	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"github.com/example/jennys-storefront/internal/readmodel"
)

// MockReadStore wraps the in-memory read store and records writes.
// Setting Err makes every call fail with it.
type MockReadStore struct {
	*store.ReadStore

	mu             sync.Mutex
	SaveOrderCalls []*readmodel.OrderReadModel
	DeleteCalls    []string
	Err            error
}

// NewMockReadStore creates a ready MockReadStore
func NewMockReadStore() *MockReadStore {
	m := &MockReadStore{ReadStore: store.NewReadStore()}
	m.MarkReady()
	return m
}

func (m *MockReadStore) SaveProduct(ctx context.Context, p *readmodel.ProductReadModel) error {
	if m.Err != nil {
		return m.Err
	}
	return m.ReadStore.SaveProduct(ctx, p)
}

func (m *MockReadStore) ListProducts(ctx context.Context) ([]*readmodel.ProductReadModel, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ReadStore.ListProducts(ctx)
}

func (m *MockReadStore) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, id)
	m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	return m.ReadStore.DeleteProduct(ctx, id)
}

func (m *MockReadStore) SaveOrder(ctx context.Context, o *readmodel.OrderReadModel) error {
	m.mu.Lock()
	m.SaveOrderCalls = append(m.SaveOrderCalls, o)
	m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	return m.ReadStore.SaveOrder(ctx, o)
}

func (m *MockReadStore) ListOrders(ctx context.Context) ([]*readmodel.OrderReadModel, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ReadStore.ListOrders(ctx)
}

var _ store.ReadStoreInterface = (*MockReadStore)(nil)
