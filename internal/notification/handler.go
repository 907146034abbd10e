package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/jennys-storefront/internal/domain/order"
	"github.com/example/jennys-storefront/internal/email"
	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"go.uber.org/zap"
)

// Mailer sends the order confirmation.
type Mailer interface {
	SendOrderConfirmation(to string, c email.Confirmation) error
}

// Handler emails customers when their order is placed.
type Handler struct {
	mailer Mailer
	logger *zap.Logger
}

func NewHandler(mailer Mailer, logger *zap.Logger) *Handler {
	return &Handler{mailer: mailer, logger: logger}
}

// HandleEvent is a kafka.MessageHandler.
func (h *Handler) HandleEvent(ctx context.Context, _, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}

	if event.EventType == order.EventOrderPlaced {
		return h.handleOrderPlaced(event)
	}
	return nil
}

func (h *Handler) handleOrderPlaced(event store.Event) error {
	var e order.OrderPlaced
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return fmt.Errorf("failed to decode OrderPlaced: %w", err)
	}

	to := strings.TrimSpace(e.CustomerEmail)
	if to == "" {
		to = strings.TrimSpace(e.ShippingAddress.Email)
	}
	if to == "" {
		h.logger.Warn("order has no email address", zap.String("order_id", e.OrderID))
		return nil
	}

	if err := h.mailer.SendOrderConfirmation(to, confirmation(e)); err != nil {
		return err
	}
	h.logger.Info("order confirmation sent", zap.String("order_id", e.OrderID))
	return nil
}

func confirmation(e order.OrderPlaced) email.Confirmation {
	c := email.Confirmation{
		OrderID:      e.OrderID,
		CustomerName: e.CustomerName,
		Total:        e.TotalPrice,
		Shipping:     e.TotalPrice,
	}
	for _, item := range e.Items {
		line := email.Item{Name: item.Name, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
		if line.Name == "" {
			line.Name = item.ProductID
		}
		c.Items = append(c.Items, line)
		c.Shipping = c.Shipping.Sub(line.LineTotal())
	}

	a := e.ShippingAddress
	for _, line := range []string{a.FullName, a.Line1, a.Line2, strings.TrimSpace(a.City + " " + a.PostalCode), a.CountryCode} {
		if strings.TrimSpace(line) != "" {
			c.AddressLines = append(c.AddressLines, line)
		}
	}
	return c
}
