package product

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventProductCreated      = "ProductCreated"
	EventProductUpdated      = "ProductUpdated"
	EventProductDeleted      = "ProductDeleted"
	EventProductImageUpdated = "ProductImageUpdated"
)

type ProductCreated struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ProductUpdated struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProductDeleted struct {
	ProductID string    `json:"product_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ProductImageUpdated is emitted when product image is updated
type ProductImageUpdated struct {
	ProductID string    `json:"product_id"`
	ImageURL  string    `json:"image_url"`
	UpdatedAt time.Time `json:"updated_at"`
}
