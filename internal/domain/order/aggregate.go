package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/jennys-storefront/internal/domain/aggregate"
	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const AggregateType = "Order"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must have at least one item")
	ErrIncompleteAddress = errors.New("shipping address is incomplete")
	ErrInvalidItem       = errors.New("order item needs a product and a positive quantity")
	ErrInvalidStatus     = errors.New("invalid order status transition")
	ErrOrderCompleted    = errors.New("order is already completed")
	ErrOrderCancelled    = errors.New("order is already cancelled")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {}, // terminal state
	StatusCancelled:  {}, // terminal state
}

var statusEvents = map[Status]string{
	StatusProcessing: EventOrderProcessing,
	StatusCompleted:  EventOrderCompleted,
	StatusCancelled:  EventOrderCancelled,
}

// ParseStatus validates a status string coming from the outside.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validTransitions[status]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	for _, s := range validTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

func (o *Order) transitionError(target Status) error {
	switch o.Status {
	case StatusCancelled:
		return ErrOrderCancelled
	case StatusCompleted:
		return ErrOrderCompleted
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

type Order struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Items            []Item          `json:"items"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	ShippingAddress  Address         `json:"shipping_address"`
	PaymentReference string          `json:"payment_reference"`
	PaymentStatus    string          `json:"payment_status"`
	CustomerName     string          `json:"customer_name"`
	CustomerEmail    string          `json:"customer_email"`
	CustomerPhone    string          `json:"customer_phone"`
	Status           Status          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int             `json:"version"`
}

// Aggregate interface implementation
func (o *Order) GetID() string    { return o.ID }
func (o *Order) GetVersion() int  { return o.Version }
func (o *Order) SetVersion(v int) { o.Version = v }

// ApplyEvent applies a single event to the order state (implements aggregate.Aggregate)
func (o *Order) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventOrderPlaced:
		var data OrderPlaced
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.ID = data.OrderID
		o.UserID = data.UserID
		o.Items = data.Items
		o.TotalPrice = data.TotalPrice
		o.ShippingAddress = data.ShippingAddress
		o.PaymentReference = data.PaymentReference
		o.PaymentStatus = data.PaymentStatus
		o.CustomerName = data.CustomerName
		o.CustomerEmail = data.CustomerEmail
		o.CustomerPhone = data.CustomerPhone
		o.Status = StatusPending
		o.CreatedAt = data.PlacedAt
		o.UpdatedAt = data.PlacedAt
	case EventOrderProcessing, EventOrderCompleted, EventOrderCancelled:
		var data OrderStatusChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusForEvent(event.EventType)
		o.UpdatedAt = data.ChangedAt
	}
	o.Version = event.Version
	return nil
}

// StatusForEvent maps a status event type to the status it sets, or "" for
// any other event.
func StatusForEvent(eventType string) Status {
	for status, et := range statusEvents {
		if et == eventType {
			return status
		}
	}
	return ""
}

// CreateRequest carries everything needed to record a paid order.
type CreateRequest struct {
	UserID           string
	Items            []Item
	TotalPrice       decimal.Decimal
	ShippingAddress  Address
	PaymentReference string
	PaymentStatus    string
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
}

type Service struct {
	eventStore store.EventStoreInterface
	logger     *zap.Logger
}

func NewService(es store.EventStoreInterface, logger *zap.Logger) *Service {
	return &Service{eventStore: es, logger: logger}
}

func (s *Service) loadOrder(ctx context.Context, orderID string) (*Order, error) {
	order, found, err := aggregate.LoadAggregate(ctx, s.eventStore, orderID, func() *Order {
		return &Order{}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// Get returns the current state of an order
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.loadOrder(ctx, orderID)
}

// Create records a new pending order. The total is taken as given since it
// must match the amount that was charged.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, item := range req.Items {
		if item.ProductID == "" || item.Quantity < 1 {
			return nil, ErrInvalidItem
		}
	}
	if missing := req.ShippingAddress.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %v", ErrIncompleteAddress, missing)
	}

	orderID := uuid.New().String()
	now := time.Now().UTC()

	event := OrderPlaced{
		OrderID:          orderID,
		UserID:           req.UserID,
		Items:            req.Items,
		TotalPrice:       req.TotalPrice,
		ShippingAddress:  req.ShippingAddress,
		PaymentReference: req.PaymentReference,
		PaymentStatus:    req.PaymentStatus,
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
		PlacedAt:         now,
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderPlaced, event)
	if err != nil {
		return nil, fmt.Errorf("failed to record order: %w", err)
	}

	order := &Order{
		ID:               orderID,
		UserID:           req.UserID,
		Items:            req.Items,
		TotalPrice:       req.TotalPrice,
		ShippingAddress:  req.ShippingAddress,
		PaymentReference: req.PaymentReference,
		PaymentStatus:    req.PaymentStatus,
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          storedEvent.Version,
	}

	s.logger.Info("order placed",
		zap.String("order_id", orderID),
		zap.String("payment_reference", req.PaymentReference),
		zap.String("total", req.TotalPrice.StringFixed(2)))

	return order, nil
}

// UpdateStatus moves an order along the admin workflow.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, target Status, reason string) (*Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.CanTransitionTo(target) {
		return nil, order.transitionError(target)
	}

	now := time.Now().UTC()
	event := OrderStatusChanged{OrderID: orderID, Reason: reason, ChangedAt: now}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, statusEvents[target], event)
	if err != nil {
		return nil, err
	}

	order.Status = target
	order.UpdatedAt = now
	order.Version = storedEvent.Version

	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, order, AggregateType); err != nil {
		s.logger.Warn("failed to create snapshot", zap.String("order_id", order.ID), zap.Error(err))
	}

	return order, nil
}
