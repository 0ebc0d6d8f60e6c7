package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-pricing/internal/db"
)

// ErrNotFound is returned when no order with the requested id exists.
var ErrNotFound = errors.New("order: not found")

// Repo persists and reads orders. Constructed over a pool for reads and over
// an open transaction when committing a checkout.
type Repo struct {
	DB db.DBTX
}

// New constructs a Repo over the given connection surface.
func New(dbtx db.DBTX) Repo {
	return Repo{DB: dbtx}
}

// Create inserts the order row together with its items and applied vouchers.
// Callers run it inside the checkout transaction so the whole order commits
// or nothing does.
func (r Repo) Create(ctx context.Context, o Order) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO orders (id, customer_id, status, total_product_cost, total_fee_cost, total_price)
VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.CustomerID, o.Status, o.TotalProductCost, o.TotalFeeCost, o.TotalPrice)
	if err != nil {
		return fmt.Errorf("order: insert order: %w", err)
	}
	for _, item := range o.Items {
		_, err := r.DB.Exec(ctx, `INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5)`,
			o.ID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal)
		if err != nil {
			return fmt.Errorf("order: insert item %d: %w", item.ProductID, err)
		}
	}
	for _, av := range o.Vouchers {
		if av.AppliedCount <= 0 {
			continue
		}
		_, err := r.DB.Exec(ctx, `INSERT INTO order_vouchers (order_id, voucher_id, applied_count)
VALUES ($1, $2, $3)`,
			o.ID, av.VoucherID, av.AppliedCount)
		if err != nil {
			return fmt.Errorf("order: insert voucher %d: %w", av.VoucherID, err)
		}
	}
	return nil
}

// Get loads an order with its items and applied vouchers.
func (r Repo) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `SELECT id, customer_id, status, total_product_cost, total_fee_cost, total_price, created_at, settled_at
FROM orders WHERE id = $1`, id).Scan(
		&o.ID, &o.CustomerID, &o.Status, &o.TotalProductCost, &o.TotalFeeCost, &o.TotalPrice, &o.CreatedAt, &o.SettledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("order: get: %w", err)
	}

	rows, err := r.DB.Query(ctx, `SELECT product_id, quantity, unit_price, subtotal
FROM order_items WHERE order_id = $1 ORDER BY product_id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("order: load items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return Order{}, err
	}

	o.Vouchers, err = r.AppliedVouchers(ctx, id)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// AppliedVouchers lists the voucher uses an order consumed. The settlement
// worker replays these counts when a post-commit settlement is retried.
func (r Repo) AppliedVouchers(ctx context.Context, id uuid.UUID) ([]AppliedVoucher, error) {
	rows, err := r.DB.Query(ctx, `SELECT voucher_id, applied_count
FROM order_vouchers WHERE order_id = $1 ORDER BY voucher_id`, id)
	if err != nil {
		return nil, fmt.Errorf("order: load vouchers: %w", err)
	}
	defer rows.Close()

	var out []AppliedVoucher
	for rows.Next() {
		var av AppliedVoucher
		if err := rows.Scan(&av.VoucherID, &av.AppliedCount); err != nil {
			return nil, err
		}
		out = append(out, av)
	}
	return out, rows.Err()
}

// ListByCustomer pages through a customer's orders, newest first. Items are
// not loaded for list views.
func (r Repo) ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, customer_id, status, total_product_cost, total_fee_cost, total_price, created_at, settled_at
FROM orders WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Status, &o.TotalProductCost, &o.TotalFeeCost, &o.TotalPrice, &o.CreatedAt, &o.SettledAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountByCustomer returns the customer's total order count for pagination.
func (r Repo) CountByCustomer(ctx context.Context, customerID int64) (int64, error) {
	var total int64
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id = $1`, customerID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("order: count: %w", err)
	}
	return total, nil
}
