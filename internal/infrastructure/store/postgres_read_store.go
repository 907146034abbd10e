package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/example/jennys-storefront/internal/readmodel"
)

// PostgresReadStore implements ReadStoreInterface using the read_* tables
type PostgresReadStore struct {
	db    *sql.DB
	ready atomic.Bool
}

// NewPostgresReadStore creates a new PostgreSQL-based read store
func NewPostgresReadStore(db *sql.DB) *PostgresReadStore {
	return &PostgresReadStore{db: db}
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Products

const productColumns = `id, name, description, price, category, image_url, created_at, updated_at`

func (rs *PostgresReadStore) SaveProduct(ctx context.Context, p *readmodel.ProductReadModel) error {
	return saveProduct(ctx, rs.db, p)
}

func saveProduct(ctx context.Context, q queryer, p *readmodel.ProductReadModel) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO read_products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			category = EXCLUDED.category,
			image_url = EXCLUDED.image_url,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.Name, p.Description, p.Price, p.Category, p.ImageURL, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save product %s: %w", p.ID, err)
	}
	return nil
}

func (rs *PostgresReadStore) GetProduct(ctx context.Context, id string) (*readmodel.ProductReadModel, bool, error) {
	return getProduct(ctx, rs.db, id, "")
}

func getProduct(ctx context.Context, q queryer, id, lock string) (*readmodel.ProductReadModel, bool, error) {
	var p readmodel.ProductReadModel
	err := q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM read_products WHERE id = $1`+lock, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return &p, true, nil
}

func (rs *PostgresReadStore) ListProducts(ctx context.Context) ([]*readmodel.ProductReadModel, error) {
	rows, err := rs.db.QueryContext(ctx, `SELECT `+productColumns+` FROM read_products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*readmodel.ProductReadModel, 0)
	for rows.Next() {
		var p readmodel.ProductReadModel
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

func (rs *PostgresReadStore) UpdateProduct(ctx context.Context, id string, updateFn func(p *readmodel.ProductReadModel)) (bool, error) {
	var found bool
	err := rs.inTx(ctx, func(tx *sql.Tx) error {
		p, ok, err := getProduct(ctx, tx, id, " FOR UPDATE")
		if err != nil || !ok {
			return err
		}
		found = true
		updateFn(p)
		return saveProduct(ctx, tx, p)
	})
	return found, err
}

func (rs *PostgresReadStore) DeleteProduct(ctx context.Context, id string) error {
	if _, err := rs.db.ExecContext(ctx, `DELETE FROM read_products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	return nil
}

// Orders

const orderColumns = `id, user_id, items, total_price, shipping_address, payment_reference,
	payment_status, customer_name, customer_email, customer_phone, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*readmodel.OrderReadModel, error) {
	var o readmodel.OrderReadModel
	var items, address []byte
	if err := row.Scan(&o.ID, &o.UserID, &items, &o.TotalPrice, &address, &o.PaymentReference,
		&o.PaymentStatus, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.Status,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items of order %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode address of order %s: %w", o.ID, err)
	}
	return &o, nil
}

func (rs *PostgresReadStore) SaveOrder(ctx context.Context, o *readmodel.OrderReadModel) error {
	return saveOrder(ctx, rs.db, o)
}

func saveOrder(ctx context.Context, q queryer, o *readmodel.OrderReadModel) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO read_orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			items = EXCLUDED.items,
			total_price = EXCLUDED.total_price,
			shipping_address = EXCLUDED.shipping_address,
			payment_reference = EXCLUDED.payment_reference,
			payment_status = EXCLUDED.payment_status,
			customer_name = EXCLUDED.customer_name,
			customer_email = EXCLUDED.customer_email,
			customer_phone = EXCLUDED.customer_phone,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`, o.ID, o.UserID, string(items), o.TotalPrice, string(address), o.PaymentReference,
		o.PaymentStatus, o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.Status,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", o.ID, err)
	}
	return nil
}

func (rs *PostgresReadStore) GetOrder(ctx context.Context, id string) (*readmodel.OrderReadModel, bool, error) {
	return getOrder(ctx, rs.db, id, "")
}

func getOrder(ctx context.Context, q queryer, id, lock string) (*readmodel.OrderReadModel, bool, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM read_orders WHERE id = $1`+lock, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return o, true, nil
}

func (rs *PostgresReadStore) ListOrders(ctx context.Context) ([]*readmodel.OrderReadModel, error) {
	rows, err := rs.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM read_orders ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*readmodel.OrderReadModel, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (rs *PostgresReadStore) UpdateOrder(ctx context.Context, id string, updateFn func(o *readmodel.OrderReadModel)) (bool, error) {
	var found bool
	err := rs.inTx(ctx, func(tx *sql.Tx) error {
		o, ok, err := getOrder(ctx, tx, id, " FOR UPDATE")
		if err != nil || !ok {
			return err
		}
		found = true
		updateFn(o)
		return saveOrder(ctx, tx, o)
	})
	return found, err
}

func (rs *PostgresReadStore) Ready() bool { return rs.ready.Load() }

func (rs *PostgresReadStore) MarkReady() { rs.ready.Store(true) }

func (rs *PostgresReadStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
