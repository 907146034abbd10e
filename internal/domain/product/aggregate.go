package product

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/example/jennys-storefront/internal/domain/aggregate"
	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateType = "Product"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrInvalidName     = errors.New("name is required")
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url,omitempty"`
	IsDeleted   bool            `json:"is_deleted,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

func (p *Product) GetID() string    { return p.ID }
func (p *Product) GetVersion() int  { return p.Version }
func (p *Product) SetVersion(v int) { p.Version = v }

func (p *Product) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventProductCreated:
		var data ProductCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.ID = data.ProductID
		p.Name = data.Name
		p.Description = data.Description
		p.Price = data.Price
		p.Category = data.Category
		p.ImageURL = data.ImageURL
		p.CreatedAt = data.CreatedAt
		p.UpdatedAt = data.CreatedAt
	case EventProductUpdated:
		var data ProductUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.Name = data.Name
		p.Description = data.Description
		p.Price = data.Price
		p.Category = data.Category
		p.UpdatedAt = data.UpdatedAt
	case EventProductImageUpdated:
		var data ProductImageUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.ImageURL = data.ImageURL
		p.UpdatedAt = data.UpdatedAt
	case EventProductDeleted:
		p.IsDeleted = true
	}
	p.Version = event.Version
	return nil
}

// Details are the editable catalog fields of a product.
type Details struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
}

func (d Details) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrInvalidName
	}
	if !d.Price.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

func (s *Service) load(ctx context.Context, productID string) (*Product, error) {
	p, found, err := aggregate.LoadAggregate(ctx, s.eventStore, productID, func() *Product {
		return &Product{}
	})
	if err != nil {
		return nil, err
	}
	if !found || p.IsDeleted {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, d Details, imageURL string) (*Product, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	productID := uuid.New().String()
	now := time.Now().UTC()

	event := ProductCreated{
		ProductID:   productID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Category:    d.Category,
		ImageURL:    imageURL,
		CreatedAt:   now,
	}

	stored, err := s.eventStore.Append(ctx, productID, AggregateType, EventProductCreated, event)
	if err != nil {
		return nil, err
	}

	return &Product{
		ID:          productID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Category:    d.Category,
		ImageURL:    imageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     stored.Version,
	}, nil
}

func (s *Service) Update(ctx context.Context, productID string, d Details) error {
	if err := d.validate(); err != nil {
		return err
	}
	if _, err := s.load(ctx, productID); err != nil {
		return err
	}

	event := ProductUpdated{
		ProductID:   productID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Category:    d.Category,
		UpdatedAt:   time.Now().UTC(),
	}

	_, err := s.eventStore.Append(ctx, productID, AggregateType, EventProductUpdated, event)
	return err
}

func (s *Service) UpdateImage(ctx context.Context, productID, imageURL string) error {
	if _, err := s.load(ctx, productID); err != nil {
		return err
	}

	event := ProductImageUpdated{
		ProductID: productID,
		ImageURL:  imageURL,
		UpdatedAt: time.Now().UTC(),
	}

	_, err := s.eventStore.Append(ctx, productID, AggregateType, EventProductImageUpdated, event)
	return err
}

// Delete removes a product from the catalog. Orders that reference it keep
// their line items and fall back to "Uncategorized" in analytics.
func (s *Service) Delete(ctx context.Context, productID string) error {
	if _, err := s.load(ctx, productID); err != nil {
		return err
	}

	event := ProductDeleted{
		ProductID: productID,
		DeletedAt: time.Now().UTC(),
	}

	_, err := s.eventStore.Append(ctx, productID, AggregateType, EventProductDeleted, event)
	return err
}
