package entitlement

import (
	"context"
	"fmt"

	"github.com/noah-isme/toko-pricing/internal/db"
)

// Store reads and mutates voucher entitlements. Reads never fail a checkout:
// unknown customers or vouchers simply produce no entries.
type Store struct {
	DB db.DBTX
}

// New constructs a Store over the given connection surface. Passing an open
// transaction scopes every call to that transaction.
func New(dbtx db.DBTX) Store {
	return Store{DB: dbtx}
}

// RemainingUses maps each requested voucher id to the customer's remaining
// use count, restricted to vouchers with at least one use left.
func (s Store) RemainingUses(ctx context.Context, customerID int64, voucherIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(voucherIDs))
	if len(voucherIDs) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, `SELECT voucher_id, remaining_uses
FROM entitlements
WHERE customer_id = $1 AND voucher_id = ANY($2) AND remaining_uses > 0`, customerID, voucherIDs)
	if err != nil {
		return nil, fmt.Errorf("entitlement: query remaining uses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			voucherID int64
			remaining int
		)
		if err := rows.Scan(&voucherID, &remaining); err != nil {
			return nil, err
		}
		out[voucherID] = remaining
	}
	return out, rows.Err()
}

// Decrement conditionally consumes count uses of a voucher. The guard keeps
// remaining_uses from ever going negative; it reports false when another
// checkout consumed the uses first.
func (s Store) Decrement(ctx context.Context, customerID, voucherID int64, count int) (bool, error) {
	if count <= 0 {
		return false, fmt.Errorf("entitlement: decrement count must be positive, got %d", count)
	}
	tag, err := s.DB.Exec(ctx, `UPDATE entitlements
SET remaining_uses = remaining_uses - $3
WHERE customer_id = $1 AND voucher_id = $2 AND remaining_uses >= $3`, customerID, voucherID, count)
	if err != nil {
		return false, fmt.Errorf("entitlement: decrement: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
