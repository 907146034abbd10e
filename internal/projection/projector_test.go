package projection

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/jennys-storefront/internal/domain/order"
	"github.com/example/jennys-storefront/internal/domain/product"
	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"github.com/example/jennys-storefront/internal/infrastructure/store/mocks"
	"github.com/example/jennys-storefront/internal/readmodel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProjector() (*Projector, *mocks.MockReadStore) {
	readStore := mocks.NewMockReadStore()
	projector := NewProjector(readStore, zap.NewNop())
	return projector, readStore
}

func makeEvent(aggregateType, eventType string, data any) []byte {
	jsonData, _ := json.Marshal(data)
	event := store.Event{
		ID:            "event-123",
		AggregateID:   "agg-123",
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now(),
	}
	result, _ := json.Marshal(event)
	return result
}

func orderPlaced(id string) order.OrderPlaced {
	return order.OrderPlaced{
		OrderID: id,
		Items: []order.Item{
			{ProductID: "wig-1", Name: "Bob Wig", UnitPrice: decimal.NewFromInt(40), Quantity: 1},
		},
		TotalPrice: decimal.NewFromInt(45),
		ShippingAddress: order.Address{
			FullName: "Ada Obi", Line1: "1 High Street", City: "London",
			PostalCode: "E1 6AN", CountryCode: "GB", Phone: "07700900000", Email: "ada@example.com",
		},
		PaymentReference: "pay_1",
		PaymentStatus:    "COMPLETED",
		CustomerName:     "Ada Obi",
		CustomerEmail:    "ada@example.com",
		PlacedAt:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// ============================================
// Product Event Tests
// ============================================

func TestProjector_HandleProductCreated(t *testing.T) {
	projector, readStore := newTestProjector()
	ctx := context.Background()

	value := makeEvent(product.AggregateType, product.EventProductCreated, product.ProductCreated{
		ProductID: "prod-123",
		Name:      "Body Wave Wig",
		Price:     decimal.RequireFromString("129.99"),
		Category:  "Wigs",
		CreatedAt: time.Now(),
	})

	err := projector.HandleEvent(ctx, nil, value)

	require.NoError(t, err)
	prod, ok, err := readStore.GetProduct(ctx, "prod-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Body Wave Wig", prod.Name)
	assert.Equal(t, "Wigs", prod.Category)
	assert.Equal(t, "129.99", prod.Price.StringFixed(2))
}

func TestProjector_HandleProductUpdatedAndImage(t *testing.T) {
	projector, readStore := newTestProjector()
	ctx := context.Background()
	require.NoError(t, readStore.SaveProduct(ctx, &readmodel.ProductReadModel{ID: "prod-123", Name: "Old", Category: "Wigs"}))

	require.NoError(t, projector.HandleEvent(ctx, nil, makeEvent(product.AggregateType, product.EventProductUpdated, product.ProductUpdated{
		ProductID: "prod-123",
		Name:      "New",
		Price:     decimal.NewFromInt(80),
		Category:  "Closures",
	})))
	require.NoError(t, projector.HandleEvent(ctx, nil, makeEvent(product.AggregateType, product.EventProductImageUpdated, product.ProductImageUpdated{
		ProductID: "prod-123",
		ImageURL:  "https://cdn.example.com/new.jpg",
	})))

	prod, _, _ := readStore.GetProduct(ctx, "prod-123")
	assert.Equal(t, "New", prod.Name)
	assert.Equal(t, "Closures", prod.Category)
	assert.Equal(t, "https://cdn.example.com/new.jpg", prod.ImageURL)
}

func TestProjector_HandleProductDeleted(t *testing.T) {
	projector, readStore := newTestProjector()
	ctx := context.Background()
	require.NoError(t, readStore.SaveProduct(ctx, &readmodel.ProductReadModel{ID: "prod-123"}))

	err := projector.HandleEvent(ctx, nil, makeEvent(product.AggregateType, product.EventProductDeleted, product.ProductDeleted{ProductID: "prod-123"}))

	require.NoError(t, err)
	assert.Equal(t, []string{"prod-123"}, readStore.DeleteCalls)
	_, ok, _ := readStore.GetProduct(ctx, "prod-123")
	assert.False(t, ok)
}

// ============================================
// Order Event Tests
// ============================================

func TestProjector_HandleOrderPlaced(t *testing.T) {
	projector, readStore := newTestProjector()
	ctx := context.Background()

	err := projector.HandleEvent(ctx, nil, makeEvent(order.AggregateType, order.EventOrderPlaced, orderPlaced("order-1")))

	require.NoError(t, err)
	o, ok, err := readStore.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, string(order.StatusPending), o.Status)
	assert.Equal(t, "45.00", o.TotalPrice.StringFixed(2))
	assert.Equal(t, "GB", o.ShippingAddress.CountryCode)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Bob Wig", o.Items[0].Name)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), o.CreatedAt)
}

func TestProjector_HandleOrderStatusChanges(t *testing.T) {
	tests := []struct {
		eventType string
		want      order.Status
	}{
		{order.EventOrderProcessing, order.StatusProcessing},
		{order.EventOrderCompleted, order.StatusCompleted},
		{order.EventOrderCancelled, order.StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			projector, readStore := newTestProjector()
			ctx := context.Background()
			require.NoError(t, projector.HandleEvent(ctx, nil, makeEvent(order.AggregateType, order.EventOrderPlaced, orderPlaced("order-1"))))

			err := projector.HandleEvent(ctx, nil, makeEvent(order.AggregateType, tt.eventType, order.OrderStatusChanged{OrderID: "order-1"}))

			require.NoError(t, err)
			o, _, _ := readStore.GetOrder(ctx, "order-1")
			assert.Equal(t, string(tt.want), o.Status)
		})
	}
}

func TestProjector_StatusChangeForUnknownOrderIsIgnored(t *testing.T) {
	projector, readStore := newTestProjector()

	err := projector.HandleEvent(context.Background(), nil, makeEvent(order.AggregateType, order.EventOrderCompleted, order.OrderStatusChanged{OrderID: "ghost"}))

	require.NoError(t, err)
	orders, _ := readStore.ListOrders(context.Background())
	assert.Empty(t, orders)
}

func TestProjector_ReadStoreError(t *testing.T) {
	projector, readStore := newTestProjector()
	readStore.Err = errors.New("disk full")

	err := projector.HandleEvent(context.Background(), nil, makeEvent(order.AggregateType, order.EventOrderPlaced, orderPlaced("order-1")))

	assert.ErrorContains(t, err, "disk full")
}

func TestProjector_InvalidPayload(t *testing.T) {
	projector, _ := newTestProjector()

	err := projector.HandleEvent(context.Background(), nil, []byte("not json"))

	assert.Error(t, err)
}

func TestProjector_UnknownAggregateIgnored(t *testing.T) {
	projector, _ := newTestProjector()

	err := projector.HandleEvent(context.Background(), nil, makeEvent("Cart", "ItemAdded", map[string]string{}))

	assert.NoError(t, err)
}

// ============================================
// Replay Tests
// ============================================

func TestProjector_ReplayMarksReady(t *testing.T) {
	readStore := store.NewReadStore()
	projector := NewProjector(readStore, zap.NewNop())
	eventStore := mocks.NewMockEventStore()
	require.NoError(t, eventStore.AddEvent("order-1", order.AggregateType, order.EventOrderPlaced, orderPlaced("order-1")))
	require.NoError(t, eventStore.AddEvent("order-1", order.AggregateType, order.EventOrderCompleted, order.OrderStatusChanged{OrderID: "order-1"}))
	require.NoError(t, eventStore.AddEvent("order-2", order.AggregateType, order.EventOrderPlaced, "garbage"))

	assert.False(t, readStore.Ready())
	err := projector.Replay(context.Background(), eventStore)

	require.NoError(t, err)
	assert.True(t, readStore.Ready())
	o, ok, _ := readStore.GetOrder(context.Background(), "order-1")
	require.True(t, ok)
	assert.Equal(t, string(order.StatusCompleted), o.Status)
}

func TestProjector_ReplayLoadError(t *testing.T) {
	readStore := store.NewReadStore()
	projector := NewProjector(readStore, zap.NewNop())
	eventStore := mocks.NewMockEventStore()
	eventStore.GetEventsErr = errors.New("connection reset")

	err := projector.Replay(context.Background(), eventStore)

	assert.Error(t, err)
	assert.False(t, readStore.Ready())
}

func TestProjector_PublishProjectsInline(t *testing.T) {
	projector, readStore := newTestProjector()
	eventStore := store.NewEventStore(projector, zap.NewNop())

	_, err := eventStore.Append(context.Background(), "prod-1", product.AggregateType, product.EventProductCreated, product.ProductCreated{
		ProductID: "prod-1",
		Name:      "Lace Glue",
		Price:     decimal.NewFromInt(12),
	})

	require.NoError(t, err)
	_, ok, _ := readStore.GetProduct(context.Background(), "prod-1")
	assert.True(t, ok)
	assert.Error(t, projector.Publish(context.Background(), "k", "not an event"))
}
