package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StorageKey is the key a cart is persisted under, namespaced per session.
const StorageKey = "cart-storage"

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product_id is required")
	ErrItemNotFound    = errors.New("item not in cart")
)

type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
}

// Storage is a key/value backend holding the serialized line items.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store is the line-item list of one session. Every mutation reads the
// latest list from storage, applies the change and writes the whole list
// back; if that write fails the mutation is undone. Readers see the list as
// of the last load or mutation.
type Store struct {
	key     string
	storage Storage
	logger  *zap.Logger
	lock    func() (unlock func())

	mu    sync.Mutex
	items []Item
}

// load reads the stored list. Unreadable data is treated as an empty cart.
func (s *Store) load(ctx context.Context) ([]Item, error) {
	data, found, err := s.storage.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if !found {
		return []Item{}, nil
	}
	items, err := decodeItems(data)
	if err != nil {
		s.logger.Warn("discarding unreadable cart", zap.String("key", s.key), zap.Error(err))
		return []Item{}, nil
	}
	return items, nil
}

func decodeItems(data []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	// drop lines that could never have been written by a Store
	valid := items[:0]
	for _, it := range items {
		if it.ProductID != "" && it.Quantity > 0 {
			valid = append(valid, it)
		}
	}
	return valid, nil
}

// mutate applies fn to the freshly loaded items and persists the result.
func (s *Store) mutate(ctx context.Context, fn func(items []Item) ([]Item, error)) error {
	unlock := s.lock()
	defer unlock()

	current, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.setItems(current)

	next, err := fn(append([]Item(nil), current...))
	if err != nil {
		return err
	}
	if next == nil {
		next = []Item{}
	}
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to persist cart: %w", err)
	}
	s.setItems(next)
	return nil
}

func (s *Store) setItems(items []Item) {
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

func indexOf(items []Item, productID string) int {
	for i, it := range items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// Add appends item, or increments the quantity of the existing line for the
// same product.
func (s *Store) Add(ctx context.Context, item Item) error {
	if item.ProductID == "" {
		return ErrInvalidProduct
	}
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return s.mutate(ctx, func(items []Item) ([]Item, error) {
		if i := indexOf(items, item.ProductID); i >= 0 {
			items[i].Quantity += item.Quantity
			return items, nil
		}
		return append(items, item), nil
	})
}

func (s *Store) Increase(ctx context.Context, productID string) error {
	return s.mutate(ctx, func(items []Item) ([]Item, error) {
		i := indexOf(items, productID)
		if i < 0 {
			return nil, ErrItemNotFound
		}
		items[i].Quantity++
		return items, nil
	})
}

// Decrease lowers the quantity by one. A line at quantity 1 is left as is;
// use Remove to drop it.
func (s *Store) Decrease(ctx context.Context, productID string) error {
	return s.mutate(ctx, func(items []Item) ([]Item, error) {
		i := indexOf(items, productID)
		if i < 0 {
			return nil, ErrItemNotFound
		}
		if items[i].Quantity > 1 {
			items[i].Quantity--
		}
		return items, nil
	})
}

func (s *Store) Remove(ctx context.Context, productID string) error {
	return s.mutate(ctx, func(items []Item) ([]Item, error) {
		if i := indexOf(items, productID); i >= 0 {
			items = append(items[:i], items[i+1:]...)
		}
		return items, nil
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]Item) ([]Item, error) {
		return []Item{}, nil
	})
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item{}, s.items...)
}

// TotalAmount is the sum of unit price times quantity over all lines.
func (s *Store) TotalAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, it := range s.items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// TotalItems is the sum of quantities over all lines.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}
