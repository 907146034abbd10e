package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/jennys-storefront/internal/domain/order"
	"github.com/example/jennys-storefront/internal/domain/product"
	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"github.com/example/jennys-storefront/internal/readmodel"
	"go.uber.org/zap"
)

// Projector folds product and order events into the read store. Handlers are
// idempotent so replay and Kafka redelivery can overlap.
type Projector struct {
	readStore store.ReadStoreInterface
	logger    *zap.Logger
}

func NewProjector(readStore store.ReadStoreInterface, logger *zap.Logger) *Projector {
	return &Projector{readStore: readStore, logger: logger}
}

// HandleEvent is a kafka.MessageHandler.
func (p *Projector) HandleEvent(ctx context.Context, _, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	return p.Project(ctx, event)
}

func (p *Projector) Project(ctx context.Context, event store.Event) error {
	p.logger.Debug("projecting event",
		zap.String("event_type", event.EventType),
		zap.String("aggregate_id", event.AggregateID))

	switch event.AggregateType {
	case product.AggregateType:
		return p.handleProductEvent(ctx, event)
	case order.AggregateType:
		return p.handleOrderEvent(ctx, event)
	}
	return nil
}

// Publish projects an event inline. It lets the projector stand in for the
// event bus when none is configured.
func (p *Projector) Publish(ctx context.Context, _ string, event any) error {
	e, ok := event.(store.Event)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	return p.Project(ctx, e)
}

// Replay projects every stored event in order and then marks the read store
// ready. Individual failures are logged and skipped.
func (p *Projector) Replay(ctx context.Context, eventStore store.EventStoreInterface) error {
	events, err := eventStore.GetAllEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	p.logger.Info("replaying events", zap.Int("count", len(events)))
	failed := 0
	for _, event := range events {
		if err := p.Project(ctx, event); err != nil {
			failed++
			p.logger.Warn("failed to replay event",
				zap.String("event_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Error(err))
		}
	}

	p.readStore.MarkReady()
	p.logger.Info("event replay completed", zap.Int("failed", failed))
	return nil
}

func (p *Projector) handleProductEvent(ctx context.Context, event store.Event) error {
	switch event.EventType {
	case product.EventProductCreated:
		var e product.ProductCreated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.readStore.SaveProduct(ctx, &readmodel.ProductReadModel{
			ID:          e.ProductID,
			Name:        e.Name,
			Description: e.Description,
			Price:       e.Price,
			Category:    e.Category,
			ImageURL:    e.ImageURL,
			CreatedAt:   e.CreatedAt,
			UpdatedAt:   e.CreatedAt,
		})

	case product.EventProductUpdated:
		var e product.ProductUpdated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.UpdateProduct(ctx, e.ProductID, func(prod *readmodel.ProductReadModel) {
			prod.Name = e.Name
			prod.Description = e.Description
			prod.Price = e.Price
			prod.Category = e.Category
			prod.UpdatedAt = e.UpdatedAt
		})
		return err

	case product.EventProductImageUpdated:
		var e product.ProductImageUpdated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.UpdateProduct(ctx, e.ProductID, func(prod *readmodel.ProductReadModel) {
			prod.ImageURL = e.ImageURL
			prod.UpdatedAt = e.UpdatedAt
		})
		return err

	case product.EventProductDeleted:
		var e product.ProductDeleted
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.readStore.DeleteProduct(ctx, e.ProductID)
	}
	return nil
}

func (p *Projector) handleOrderEvent(ctx context.Context, event store.Event) error {
	if event.EventType == order.EventOrderPlaced {
		var e order.OrderPlaced
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.readStore.SaveOrder(ctx, orderReadModel(e))
	}

	status := order.StatusForEvent(event.EventType)
	if status == "" {
		return nil
	}
	var e order.OrderStatusChanged
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return err
	}
	found, err := p.readStore.UpdateOrder(ctx, e.OrderID, func(o *readmodel.OrderReadModel) {
		o.Status = string(status)
		o.UpdatedAt = e.ChangedAt
	})
	if err != nil {
		return err
	}
	if !found {
		p.logger.Warn("status change for unknown order", zap.String("order_id", e.OrderID))
	}
	return nil
}

func orderReadModel(e order.OrderPlaced) *readmodel.OrderReadModel {
	items := make([]readmodel.OrderItemReadModel, 0, len(e.Items))
	for _, item := range e.Items {
		items = append(items, readmodel.OrderItemReadModel{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	addr := e.ShippingAddress
	return &readmodel.OrderReadModel{
		ID:         e.OrderID,
		UserID:     e.UserID,
		Items:      items,
		TotalPrice: e.TotalPrice,
		ShippingAddress: readmodel.AddressReadModel{
			FullName:    addr.FullName,
			Line1:       addr.Line1,
			Line2:       addr.Line2,
			City:        addr.City,
			PostalCode:  addr.PostalCode,
			CountryCode: addr.CountryCode,
			Phone:       addr.Phone,
			Email:       addr.Email,
		},
		PaymentReference: e.PaymentReference,
		PaymentStatus:    e.PaymentStatus,
		CustomerName:     e.CustomerName,
		CustomerEmail:    e.CustomerEmail,
		CustomerPhone:    e.CustomerPhone,
		Status:           string(order.StatusPending),
		CreatedAt:        e.PlacedAt,
		UpdatedAt:        e.PlacedAt,
	}
}
