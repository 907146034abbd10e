package store

import (
	"context"

	"github.com/example/jennys-storefront/internal/readmodel"
)

// ReadStoreInterface defines the interface for read model storage
type ReadStoreInterface interface {
	SaveProduct(ctx context.Context, p *readmodel.ProductReadModel) error
	GetProduct(ctx context.Context, id string) (*readmodel.ProductReadModel, bool, error)
	ListProducts(ctx context.Context) ([]*readmodel.ProductReadModel, error)
	UpdateProduct(ctx context.Context, id string, updateFn func(p *readmodel.ProductReadModel)) (bool, error)
	DeleteProduct(ctx context.Context, id string) error

	SaveOrder(ctx context.Context, o *readmodel.OrderReadModel) error
	GetOrder(ctx context.Context, id string) (*readmodel.OrderReadModel, bool, error)
	// ListOrders returns orders oldest first.
	ListOrders(ctx context.Context) ([]*readmodel.OrderReadModel, error)
	UpdateOrder(ctx context.Context, id string, updateFn func(o *readmodel.OrderReadModel)) (bool, error)

	// Ready reports whether the initial event replay has finished. Until then
	// the collections are incomplete and readers must treat them as loading.
	Ready() bool
	MarkReady()
}
