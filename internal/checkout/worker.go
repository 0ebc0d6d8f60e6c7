package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/events"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/order"
	"github.com/noah-isme/toko-pricing/internal/queue"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

type settlementTask struct {
	OrderID    uuid.UUID `json:"orderId"`
	CustomerID int64     `json:"customerId"`
}

func encodeSettlementTask(orderID uuid.UUID, customerID int64) ([]byte, error) {
	return json.Marshal(settlementTask{OrderID: orderID, CustomerID: customerID})
}

// OrderLoader reads the applied voucher counts for an order.
type OrderLoader interface {
	AppliedVouchers(ctx context.Context, id uuid.UUID) ([]order.AppliedVoucher, error)
}

// SettlementWorker replays voucher settlement for orders whose post-commit
// settlement failed. A lost entitlement race is terminal here: retrying
// cannot bring the entitlement back, so the task is not requeued for it.
type SettlementWorker struct {
	Orders  OrderLoader
	Settler Settler
	Events  *events.Bus
	Logger  *zerolog.Logger
}

// Handle processes one settlement retry task.
func (w *SettlementWorker) Handle(ctx context.Context, task queue.Task) error {
	var payload settlementTask
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("checkout: decode settlement task: %w", err)
	}
	applied, err := w.Orders.AppliedVouchers(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	usages := make([]voucher.Usage, 0, len(applied))
	for _, av := range applied {
		usages = append(usages, voucher.Usage{VoucherID: av.VoucherID, Count: av.AppliedCount})
	}

	err = w.Settler.Settle(ctx, payload.OrderID, payload.CustomerID, usages)
	switch {
	case err == nil:
		if obs.SettlementTotal != nil {
			obs.SettlementTotal.WithLabelValues("ok").Inc()
		}
		if w.Events != nil {
			_, _ = w.Events.Emit(ctx, events.TopicOrderSettled, payload.OrderID, map[string]any{"orderId": payload.OrderID.String()})
		}
		return nil
	case errors.Is(err, voucher.ErrEntitlementRaceLost):
		if obs.SettlementTotal != nil {
			obs.SettlementTotal.WithLabelValues("conflict").Inc()
		}
		if w.Logger != nil {
			w.Logger.Warn().Str("order_id", payload.OrderID.String()).Msg("settlement retry lost entitlement race")
		}
		if w.Events != nil {
			_, _ = w.Events.Emit(ctx, events.TopicSettlementConflict, payload.OrderID, map[string]any{"orderId": payload.OrderID.String()})
		}
		return nil
	default:
		if obs.SettlementTotal != nil {
			obs.SettlementTotal.WithLabelValues("error").Inc()
		}
		return err
	}
}
