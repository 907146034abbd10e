package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/example/jennys-storefront/internal/domain/order"
	"github.com/example/jennys-storefront/internal/readmodel"
	"github.com/shopspring/decimal"
)

func isCompleted(o *readmodel.OrderReadModel) bool {
	return o.Status == string(order.StatusCompleted)
}

func CountOrders(orders []*readmodel.OrderReadModel) OrderCounts {
	counts := OrderCounts{Total: len(orders)}
	for _, o := range orders {
		switch order.Status(o.Status) {
		case order.StatusPending:
			counts.Pending++
		case order.StatusProcessing:
			counts.Processing++
		case order.StatusCompleted:
			counts.Completed++
		case order.StatusCancelled:
			counts.Cancelled++
		}
	}
	return counts
}

// TotalRevenue sums every order regardless of status, unlike the breakdowns
// below which only look at completed orders.
func TotalRevenue(orders []*readmodel.OrderReadModel) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.TotalPrice)
	}
	return total
}

// WeeklyRevenue buckets order totals into the seven calendar days ending
// today in now's location, oldest first. Days without orders are zero.
func WeeklyRevenue(orders []*readmodel.OrderReadModel, now time.Time) []DailyRevenue {
	loc := now.Location()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	days := make([]DailyRevenue, 7)
	index := make(map[string]int, 7)
	for i := range days {
		date := today.AddDate(0, 0, i-6)
		days[i] = DailyRevenue{
			Day:     date.Weekday().String()[:3],
			Date:    date,
			Revenue: decimal.Zero,
		}
		index[date.Format(time.DateOnly)] = i
	}

	for _, o := range orders {
		if i, ok := index[o.CreatedAt.In(loc).Format(time.DateOnly)]; ok {
			days[i].Revenue = days[i].Revenue.Add(o.TotalPrice)
		}
	}
	return days
}

type catalog map[string]*readmodel.ProductReadModel

func newCatalog(products []*readmodel.ProductReadModel) catalog {
	c := make(catalog, len(products))
	for _, p := range products {
		c[p.ID] = p
	}
	return c
}

// resolve returns the display name and category of a line item. Products
// that are no longer in the catalog land in UncategorizedCategory.
func (c catalog) resolve(item readmodel.OrderItemReadModel) (name, category string) {
	name, category = item.Name, UncategorizedCategory
	if p, ok := c[item.ProductID]; ok {
		if p.Name != "" {
			name = p.Name
		}
		if p.Category != "" {
			category = p.Category
		}
	}
	if name == "" {
		name = UnknownProductName
	}
	return name, category
}

func lineRevenue(item readmodel.OrderItemReadModel) decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// ProductStats accumulates units and revenue per product over completed
// orders, in first-seen order.
func ProductStats(orders []*readmodel.OrderReadModel, products []*readmodel.ProductReadModel) []ProductStat {
	cat := newCatalog(products)
	var stats []ProductStat
	index := make(map[string]int)

	for _, o := range orders {
		if !isCompleted(o) {
			continue
		}
		for _, item := range o.Items {
			i, ok := index[item.ProductID]
			if !ok {
				name, category := cat.resolve(item)
				stats = append(stats, ProductStat{ProductID: item.ProductID, Name: name, Category: category, Revenue: decimal.Zero})
				i = len(stats) - 1
				index[item.ProductID] = i
			}
			stats[i].Units += item.Quantity
			stats[i].Revenue = stats[i].Revenue.Add(lineRevenue(item))
		}
	}
	return stats
}

func categoryStats(orders []*readmodel.OrderReadModel, products []*readmodel.ProductReadModel) []CategoryStat {
	cat := newCatalog(products)
	var stats []CategoryStat
	index := make(map[string]int)

	for _, o := range orders {
		if !isCompleted(o) {
			continue
		}
		for _, item := range o.Items {
			_, category := cat.resolve(item)
			i, ok := index[category]
			if !ok {
				stats = append(stats, CategoryStat{Category: category, Revenue: decimal.Zero})
				i = len(stats) - 1
				index[category] = i
			}
			stats[i].Units += item.Quantity
			stats[i].Revenue = stats[i].Revenue.Add(lineRevenue(item))
		}
	}
	return stats
}

// CategoryBreakdown is revenue per category over completed orders, highest
// first.
func CategoryBreakdown(orders []*readmodel.OrderReadModel, products []*readmodel.ProductReadModel) []CategoryRevenue {
	stats := categoryStats(orders, products)
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Revenue.GreaterThan(stats[j].Revenue)
	})
	out := make([]CategoryRevenue, 0, len(stats))
	for _, s := range stats {
		out = append(out, CategoryRevenue{Category: s.Category, Revenue: s.Revenue, Units: s.Units})
	}
	return out
}

// TopProducts ranks products by revenue. Ties keep first-seen order.
func TopProducts(orders []*readmodel.OrderReadModel, products []*readmodel.ProductReadModel, n int) []ProductStat {
	stats := ProductStats(orders, products)
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Revenue.GreaterThan(stats[j].Revenue)
	})
	return truncate(stats, n)
}

// BestSellingProduct is the product with the most units sold.
func BestSellingProduct(orders []*readmodel.OrderReadModel, products []*readmodel.ProductReadModel) (ProductStat, bool) {
	stats := ProductStats(orders, products)
	if len(stats) == 0 {
		return ProductStat{}, false
	}
	best := stats[0]
	for _, s := range stats[1:] {
		if s.Units > best.Units {
			best = s
		}
	}
	return best, true
}

// TopCategories ranks categories by units sold. Ties keep first-seen order.
func TopCategories(orders []*readmodel.OrderReadModel, products []*readmodel.ProductReadModel, n int) []CategoryStat {
	stats := categoryStats(orders, products)
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Units > stats[j].Units
	})
	return truncate(stats, n)
}

func truncate[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	if s == nil {
		return []T{}
	}
	return s
}

func customerKey(o *readmodel.OrderReadModel) string {
	if email := strings.ToLower(strings.TrimSpace(o.CustomerEmail)); email != "" {
		return email
	}
	if o.UserID != "" {
		return o.UserID
	}
	return AnonymousCustomer
}

// ProcessCustomers rolls orders up per customer, keyed by email, then user
// id, then AnonymousCustomer. Contact details come from the last order
// processed for the customer in slice order, not the newest by date.
func ProcessCustomers(orders []*readmodel.OrderReadModel) []Customer {
	var customers []Customer
	index := make(map[string]int)

	for _, o := range orders {
		key := customerKey(o)
		i, ok := index[key]
		if !ok {
			customers = append(customers, Customer{
				Key:           key,
				TotalSpent:    decimal.Zero,
				JoinedAt:      o.CreatedAt,
				LastOrderDate: o.CreatedAt,
				Status:        CustomerInactive,
			})
			i = len(customers) - 1
			index[key] = i
		}
		c := &customers[i]

		c.TotalOrders++
		if isCompleted(o) {
			c.TotalSpent = c.TotalSpent.Add(o.TotalPrice)
			c.Status = CustomerActive
		}
		if o.CreatedAt.Before(c.JoinedAt) {
			c.JoinedAt = o.CreatedAt
		}
		if o.CreatedAt.After(c.LastOrderDate) {
			c.LastOrderDate = o.CreatedAt
		}

		c.UserID = o.UserID
		c.Name = o.CustomerName
		c.Email = o.CustomerEmail
		c.Phone = o.CustomerPhone
		c.Address = CustomerAddress{
			Line1:       o.ShippingAddress.Line1,
			Line2:       o.ShippingAddress.Line2,
			City:        o.ShippingAddress.City,
			PostalCode:  o.ShippingAddress.PostalCode,
			CountryCode: o.ShippingAddress.CountryCode,
		}
	}

	if customers == nil {
		return []Customer{}
	}
	return customers
}

// Build computes every dashboard view from a snapshot of both collections.
func Build(orders []*readmodel.OrderReadModel, products []*readmodel.ProductReadModel, now time.Time) *Dashboard {
	d := &Dashboard{
		Counts:        CountOrders(orders),
		TotalRevenue:  TotalRevenue(orders),
		Weekly:        WeeklyRevenue(orders, now),
		Categories:    CategoryBreakdown(orders, products),
		TopProducts:   TopProducts(orders, products, DefaultTopProducts),
		TopCategories: TopCategories(orders, products, DefaultTopCategories),
		Customers:     ProcessCustomers(orders),
		ProductCount:  len(products),
		GeneratedAt:   now,
	}
	if best, ok := BestSellingProduct(orders, products); ok {
		d.BestSeller = &best
	}
	return d
}
