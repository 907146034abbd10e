package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/example/jennys-storefront/internal/readmodel"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source supplies the live collections. Ready is false until the read side
// has caught up with the event log.
type Source interface {
	ListOrders(ctx context.Context) ([]*readmodel.OrderReadModel, error)
	ListProducts(ctx context.Context) ([]*readmodel.ProductReadModel, error)
	Ready() bool
}

type Service struct {
	source Source
	logger *zap.Logger
	now    func() time.Time
	group  singleflight.Group
}

func NewService(source Source, logger *zap.Logger) *Service {
	return &Service{source: source, logger: logger, now: time.Now}
}

// Dashboard builds all views. Concurrent callers share one computation and
// must treat the result as read-only.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if !s.source.Ready() {
		return &Dashboard{Loading: true}, nil
	}

	v, err, shared := s.group.Do("dashboard", func() (any, error) {
		orders, err := s.source.ListOrders(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list orders: %w", err)
		}
		products, err := s.source.ListProducts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list products: %w", err)
		}
		return Build(orders, products, s.now()), nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("dashboard computation shared")
	}
	return v.(*Dashboard), nil
}

// Customers returns the customer rollup. The boolean is true while the
// source is still loading.
func (s *Service) Customers(ctx context.Context) ([]Customer, bool, error) {
	if !s.source.Ready() {
		return nil, true, nil
	}
	orders, err := s.source.ListOrders(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list orders: %w", err)
	}
	return ProcessCustomers(orders), false, nil
}
