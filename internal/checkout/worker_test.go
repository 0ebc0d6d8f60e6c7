package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/order"
	"github.com/noah-isme/toko-pricing/internal/queue"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

type stubOrderLoader struct {
	applied map[uuid.UUID][]order.AppliedVoucher
	err     error
}

func (s *stubOrderLoader) AppliedVouchers(_ context.Context, id uuid.UUID) ([]order.AppliedVoucher, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.applied[id], nil
}

func settlementRetryTask(t *testing.T, orderID uuid.UUID, customerID int64) queue.Task {
	t.Helper()
	payload, err := encodeSettlementTask(orderID, customerID)
	require.NoError(t, err)
	return queue.Task{Kind: TaskKindSettlement, Payload: payload, IdempotencyKey: orderID.String()}
}

func TestWorkerReplaysAppliedCounts(t *testing.T) {
	orderID := uuid.New()
	loader := &stubOrderLoader{applied: map[uuid.UUID][]order.AppliedVoucher{
		orderID: {{VoucherID: 5, AppliedCount: 2}},
	}}
	settler := &stubSettler{}
	w := &SettlementWorker{Orders: loader, Settler: settler}

	err := w.Handle(context.Background(), settlementRetryTask(t, orderID, 42))
	require.NoError(t, err)
	require.Equal(t, []voucher.Usage{{VoucherID: 5, Count: 2}}, settler.usages[0])
}

func TestWorkerRaceLostIsTerminal(t *testing.T) {
	orderID := uuid.New()
	loader := &stubOrderLoader{applied: map[uuid.UUID][]order.AppliedVoucher{
		orderID: {{VoucherID: 5, AppliedCount: 1}},
	}}
	settler := &stubSettler{err: voucher.ErrEntitlementRaceLost}
	w := &SettlementWorker{Orders: loader, Settler: settler}

	// a retry cannot restore the entitlement, so the task must not requeue
	err := w.Handle(context.Background(), settlementRetryTask(t, orderID, 42))
	require.NoError(t, err)
}

func TestWorkerTransientErrorRequeues(t *testing.T) {
	orderID := uuid.New()
	loader := &stubOrderLoader{applied: map[uuid.UUID][]order.AppliedVoucher{orderID: {{VoucherID: 5, AppliedCount: 1}}}}
	settler := &stubSettler{err: errors.New("db down")}
	w := &SettlementWorker{Orders: loader, Settler: settler}

	err := w.Handle(context.Background(), settlementRetryTask(t, orderID, 42))
	require.Error(t, err)
}

func TestWorkerRejectsMalformedPayload(t *testing.T) {
	w := &SettlementWorker{Orders: &stubOrderLoader{}, Settler: &stubSettler{}}

	err := w.Handle(context.Background(), queue.Task{Kind: TaskKindSettlement, Payload: []byte("{broken")})
	require.Error(t, err)
}
