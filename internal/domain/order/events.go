package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced     = "OrderPlaced"
	EventOrderProcessing = "OrderProcessing"
	EventOrderCompleted  = "OrderCompleted"
	EventOrderCancelled  = "OrderCancelled"
)

type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type OrderPlaced struct {
	OrderID          string          `json:"order_id"`
	UserID           string          `json:"user_id"`
	Items            []Item          `json:"items"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	ShippingAddress  Address         `json:"shipping_address"`
	PaymentReference string          `json:"payment_reference"`
	PaymentStatus    string          `json:"payment_status"`
	CustomerName     string          `json:"customer_name"`
	CustomerEmail    string          `json:"customer_email"`
	CustomerPhone    string          `json:"customer_phone"`
	PlacedAt         time.Time       `json:"placed_at"`
}

// OrderStatusChanged is the payload of the processing, completed and
// cancelled events.
type OrderStatusChanged struct {
	OrderID   string    `json:"order_id"`
	Reason    string    `json:"reason,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}
