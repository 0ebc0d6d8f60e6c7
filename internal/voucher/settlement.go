package voucher

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrEntitlementRaceLost is returned when a settlement decrement finds the
// entitlement already consumed by a concurrent checkout. The quoted price
// assumed a discount that is no longer available, so callers must treat this
// as a recoverable conflict rather than ignore it.
var ErrEntitlementRaceLost = errors.New("voucher: remaining entitlement consumed by concurrent checkout")

// SettleResult describes the outcome of settling a single voucher.
type SettleResult int

const (
	// SettleApplied means the settlement row was recorded and the
	// entitlement decremented.
	SettleApplied SettleResult = iota
	// SettleAlreadySettled means a previous settlement run already handled
	// this (order, voucher) pair.
	SettleAlreadySettled
	// SettleRaceLost means the conditional decrement found fewer remaining
	// uses than the quote consumed.
	SettleRaceLost
)

// SettlementStore persists settlement outcomes. SettleVoucher must record the
// settlement row and run the conditional entitlement decrement atomically.
type SettlementStore interface {
	SettleVoucher(ctx context.Context, orderID uuid.UUID, customerID, voucherID int64, count int) (SettleResult, error)
	MarkOrderSettled(ctx context.Context, orderID uuid.UUID) error
}

// Settlement decrements voucher entitlements after an order is committed.
type Settlement struct {
	Store  SettlementStore
	Logger *zerolog.Logger
}

// Settle consumes the applied use counts for an order. It is safe to re-run
// for the same order: vouchers already settled are skipped. When any voucher
// loses the entitlement race the remaining vouchers are still settled and
// ErrEntitlementRaceLost is returned; the order is only marked settled once
// every voucher went through.
func (s *Settlement) Settle(ctx context.Context, orderID uuid.UUID, customerID int64, usages []Usage) error {
	if s == nil || s.Store == nil {
		return errors.New("voucher: settlement store not configured")
	}
	var conflict error
	for _, usage := range usages {
		if usage.Count <= 0 {
			continue
		}
		result, err := s.Store.SettleVoucher(ctx, orderID, customerID, usage.VoucherID, usage.Count)
		if err != nil {
			return fmt.Errorf("voucher: settle voucher %d: %w", usage.VoucherID, err)
		}
		switch result {
		case SettleRaceLost:
			conflict = fmt.Errorf("voucher %d: %w", usage.VoucherID, ErrEntitlementRaceLost)
			if s.Logger != nil {
				s.Logger.Warn().
					Str("order_id", orderID.String()).
					Int64("voucher_id", usage.VoucherID).
					Int("count", usage.Count).
					Msg("entitlement race lost during settlement")
			}
		case SettleAlreadySettled:
			if s.Logger != nil {
				s.Logger.Debug().
					Str("order_id", orderID.String()).
					Int64("voucher_id", usage.VoucherID).
					Msg("voucher already settled, skipping")
			}
		}
	}
	if conflict != nil {
		return conflict
	}
	return s.Store.MarkOrderSettled(ctx, orderID)
}
