// Package analytics turns the order and product collections into the admin
// dashboard's summaries. Every view is recomputed from scratch on each call.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	UncategorizedCategory = "Uncategorized"
	UnknownProductName    = "Unknown Product"
	AnonymousCustomer     = "anonymous"

	CustomerActive   = "Active"
	CustomerInactive = "Inactive"

	DefaultTopProducts   = 5
	DefaultTopCategories = 4
)

type OrderCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
}

type DailyRevenue struct {
	Day     string          `json:"day"`
	Date    time.Time       `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

type CategoryRevenue struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
	Units    int             `json:"units"`
}

type ProductStat struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Units     int             `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type CategoryStat struct {
	Category string          `json:"category"`
	Units    int             `json:"units"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type CustomerAddress struct {
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
}

type Customer struct {
	Key           string          `json:"key"`
	UserID        string          `json:"user_id,omitempty"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	Address       CustomerAddress `json:"address"`
	TotalOrders   int             `json:"total_orders"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	JoinedAt      time.Time       `json:"joined_at"`
	LastOrderDate time.Time       `json:"last_order_date"`
	Status        string          `json:"status"`
}

// Dashboard bundles every view. Loading is set while the underlying
// collections are not yet available; the other fields are then empty.
type Dashboard struct {
	Loading       bool              `json:"loading"`
	Counts        OrderCounts       `json:"counts"`
	TotalRevenue  decimal.Decimal   `json:"total_revenue"`
	Weekly        []DailyRevenue    `json:"weekly_revenue"`
	Categories    []CategoryRevenue `json:"category_breakdown"`
	TopProducts   []ProductStat     `json:"top_products"`
	BestSeller    *ProductStat      `json:"best_selling_product,omitempty"`
	TopCategories []CategoryStat    `json:"top_categories"`
	Customers     []Customer        `json:"customers"`
	ProductCount  int               `json:"product_count"`
	GeneratedAt   time.Time         `json:"generated_at"`
}
