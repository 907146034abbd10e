package readmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductReadModel is the read model for catalog products
type ProductReadModel struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderItemReadModel represents a line item in an order
type OrderItemReadModel struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// AddressReadModel is the shipping address stored with an order
type AddressReadModel struct {
	FullName    string `json:"full_name"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

// OrderReadModel is the read model for orders, consumed by the admin
// dashboard and analytics
type OrderReadModel struct {
	ID               string               `json:"id"`
	UserID           string               `json:"user_id,omitempty"`
	Items            []OrderItemReadModel `json:"items"`
	TotalPrice       decimal.Decimal      `json:"total_price"`
	ShippingAddress  AddressReadModel     `json:"shipping_address"`
	PaymentReference string               `json:"payment_reference"`
	PaymentStatus    string               `json:"payment_status"`
	CustomerName     string               `json:"customer_name"`
	CustomerEmail    string               `json:"customer_email"`
	CustomerPhone    string               `json:"customer_phone"`
	Status           string               `json:"status"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}
