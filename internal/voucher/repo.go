package voucher

import (
	"context"
	"fmt"

	"github.com/noah-isme/toko-pricing/internal/db"
)

// Repo resolves voucher scope links.
type Repo struct {
	DB db.DBTX
}

// NewRepo constructs a voucher repo over the given connection surface.
func NewRepo(dbtx db.DBTX) Repo {
	return Repo{DB: dbtx}
}

// ProductVouchers returns the vouchers among ids that are linked to the product.
func (r Repo) ProductVouchers(ctx context.Context, productID int64, ids []int64) ([]Voucher, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.query(ctx, `SELECT v.id, v.code, v.kind, v.value
FROM product_vouchers pv
JOIN vouchers v ON v.id = pv.voucher_id
WHERE pv.product_id = $1 AND pv.voucher_id = ANY($2)
ORDER BY v.id`, productID, ids)
}

// ShippingVouchers returns the vouchers among ids valid for the shipping fee scope.
func (r Repo) ShippingVouchers(ctx context.Context, ids []int64) ([]Voucher, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.query(ctx, `SELECT v.id, v.code, v.kind, v.value
FROM shipping_vouchers sv
JOIN vouchers v ON v.id = sv.voucher_id
WHERE sv.voucher_id = ANY($1)
ORDER BY v.id`, ids)
}

// PaymentVouchers returns the vouchers among ids valid for the payment fee scope.
func (r Repo) PaymentVouchers(ctx context.Context, ids []int64) ([]Voucher, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.query(ctx, `SELECT v.id, v.code, v.kind, v.value
FROM payment_vouchers pv
JOIN vouchers v ON v.id = pv.voucher_id
WHERE pv.voucher_id = ANY($1)
ORDER BY v.id`, ids)
}

// CustomerVoucher is a voucher joined with the customer's remaining uses.
type CustomerVoucher struct {
	Voucher
	RemainingUses int `json:"remainingUses"`
}

// CustomerVouchers lists the vouchers a customer can still use.
func (r Repo) CustomerVouchers(ctx context.Context, customerID int64) ([]CustomerVoucher, error) {
	rows, err := r.DB.Query(ctx, `SELECT v.id, v.code, v.kind, v.value, e.remaining_uses
FROM entitlements e
JOIN vouchers v ON v.id = e.voucher_id
WHERE e.customer_id = $1 AND e.remaining_uses > 0
ORDER BY v.id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("voucher: list customer vouchers: %w", err)
	}
	defer rows.Close()

	var out []CustomerVoucher
	for rows.Next() {
		var cv CustomerVoucher
		if err := rows.Scan(&cv.ID, &cv.Code, &cv.Kind, &cv.Value, &cv.RemainingUses); err != nil {
			return nil, err
		}
		out = append(out, cv)
	}
	return out, rows.Err()
}

func (r Repo) query(ctx context.Context, sql string, args ...any) ([]Voucher, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("voucher: query scope: %w", err)
	}
	defer rows.Close()

	var out []Voucher
	for rows.Next() {
		var v Voucher
		if err := rows.Scan(&v.ID, &v.Code, &v.Kind, &v.Value); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
