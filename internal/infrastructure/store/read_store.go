package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/example/jennys-storefront/internal/readmodel"
)

// ReadStore is an in-memory read model store
type ReadStore struct {
	mu       sync.RWMutex
	products map[string]*readmodel.ProductReadModel
	orders   map[string]*readmodel.OrderReadModel
	ready    atomic.Bool
}

func NewReadStore() *ReadStore {
	return &ReadStore{
		products: make(map[string]*readmodel.ProductReadModel),
		orders:   make(map[string]*readmodel.OrderReadModel),
	}
}

func (rs *ReadStore) SaveProduct(_ context.Context, p *readmodel.ProductReadModel) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	cp := *p
	rs.products[p.ID] = &cp
	return nil
}

func (rs *ReadStore) GetProduct(_ context.Context, id string) (*readmodel.ProductReadModel, bool, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	p, ok := rs.products[id]
	if !ok {
		return nil, false, nil
	}
	cp := *p
	return &cp, true, nil
}

// ListProducts returns products ordered by name
func (rs *ReadStore) ListProducts(_ context.Context) ([]*readmodel.ProductReadModel, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	out := make([]*readmodel.ProductReadModel, 0, len(rs.products))
	for _, p := range rs.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (rs *ReadStore) UpdateProduct(_ context.Context, id string, updateFn func(p *readmodel.ProductReadModel)) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	p, ok := rs.products[id]
	if !ok {
		return false, nil
	}
	updateFn(p)
	return true, nil
}

func (rs *ReadStore) DeleteProduct(_ context.Context, id string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.products, id)
	return nil
}

func (rs *ReadStore) SaveOrder(_ context.Context, o *readmodel.OrderReadModel) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.orders[o.ID] = cloneOrder(o)
	return nil
}

func (rs *ReadStore) GetOrder(_ context.Context, id string) (*readmodel.OrderReadModel, bool, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	o, ok := rs.orders[id]
	if !ok {
		return nil, false, nil
	}
	return cloneOrder(o), true, nil
}

func (rs *ReadStore) ListOrders(_ context.Context) ([]*readmodel.OrderReadModel, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	out := make([]*readmodel.OrderReadModel, 0, len(rs.orders))
	for _, o := range rs.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (rs *ReadStore) UpdateOrder(_ context.Context, id string, updateFn func(o *readmodel.OrderReadModel)) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	o, ok := rs.orders[id]
	if !ok {
		return false, nil
	}
	updateFn(o)
	return true, nil
}

func (rs *ReadStore) Ready() bool { return rs.ready.Load() }

func (rs *ReadStore) MarkReady() { rs.ready.Store(true) }

func cloneOrder(o *readmodel.OrderReadModel) *readmodel.OrderReadModel {
	cp := *o
	cp.Items = append([]readmodel.OrderItemReadModel(nil), o.Items...)
	return &cp
}
