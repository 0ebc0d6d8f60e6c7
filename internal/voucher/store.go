package voucher

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/toko-pricing/internal/entitlement"
)

// Store is the Postgres-backed SettlementStore. The settlement row and the
// entitlement decrement for one voucher run in a single transaction.
type Store struct {
	Pool *pgxpool.Pool
}

// SettleVoucher records the (order, voucher) settlement and consumes the
// entitlement. Re-running for an already-settled pair is a no-op.
func (s Store) SettleVoucher(ctx context.Context, orderID uuid.UUID, customerID, voucherID int64, count int) (SettleResult, error) {
	if s.Pool == nil {
		return SettleRaceLost, errors.New("voucher: settlement pool not configured")
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return SettleRaceLost, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `INSERT INTO voucher_settlements (order_id, voucher_id, applied_count)
VALUES ($1, $2, $3)
ON CONFLICT (order_id, voucher_id) DO NOTHING`, orderID, voucherID, count)
	if err != nil {
		return SettleRaceLost, fmt.Errorf("voucher: insert settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return SettleAlreadySettled, nil
	}

	decremented, err := entitlement.New(tx).Decrement(ctx, customerID, voucherID, count)
	if err != nil {
		return SettleRaceLost, err
	}
	if !decremented {
		// Roll back the settlement row so a retry can attempt the pair again.
		return SettleRaceLost, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return SettleRaceLost, err
	}
	return SettleApplied, nil
}

// MarkOrderSettled transitions a committed order to settled.
func (s Store) MarkOrderSettled(ctx context.Context, orderID uuid.UUID) error {
	if s.Pool == nil {
		return errors.New("voucher: settlement pool not configured")
	}
	_, err := s.Pool.Exec(ctx, `UPDATE orders
SET status = 'SETTLED', settled_at = now()
WHERE id = $1 AND status = 'COMMITTED'`, orderID)
	return err
}
