package checkout

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/order"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/queue"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

type stubQuoter struct {
	breakdown pricing.Breakdown
	err       error

	lastCustomer int64
	lastLines    []pricing.Line
	lastVouchers []int64
}

func (s *stubQuoter) Quote(_ context.Context, customerID int64, lines []pricing.Line, voucherIDs []int64) (pricing.Breakdown, error) {
	s.lastCustomer = customerID
	s.lastLines = lines
	s.lastVouchers = voucherIDs
	return s.breakdown, s.err
}

type stubCommitter struct {
	committed []order.Order
	err       error
}

func (s *stubCommitter) Commit(_ context.Context, o order.Order) error {
	if s.err != nil {
		return s.err
	}
	s.committed = append(s.committed, o)
	return nil
}

type stubSettler struct {
	err      error
	orderIDs []uuid.UUID
	usages   [][]voucher.Usage
}

func (s *stubSettler) Settle(_ context.Context, orderID uuid.UUID, _ int64, usages []voucher.Usage) error {
	s.orderIDs = append(s.orderIDs, orderID)
	s.usages = append(s.usages, usages)
	return s.err
}

type stubEnqueuer struct {
	tasks []queue.Task
	err   error
}

func (s *stubEnqueuer) Enqueue(_ context.Context, t queue.Task) error {
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, t)
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testBreakdown() pricing.Breakdown {
	return pricing.Breakdown{
		Lines: []pricing.LinePrice{{
			ProductID: 1, Quantity: 2,
			BasePrice: dec("100"), UnitPrice: dec("85"), LineTotal: dec("170"),
		}},
		TotalProductCost: dec("170"),
		TotalFeeCost:     dec("15"),
		TotalPrice:       dec("185"),
		AppliedVouchers:  map[int64]int{5: 1},
	}
}

func newService(q *stubQuoter, c *stubCommitter, s *stubSettler, e *stubEnqueuer) *Service {
	return &Service{
		Engine:   q,
		Orders:   c,
		Settler:  s,
		Retry:    e,
		Validate: validator.New(),
	}
}

func validInput() Input {
	return Input{
		CustomerID: 42,
		Lines:      []LineInput{{ProductID: 1, Quantity: 2}},
		VoucherIDs: []int64{5},
	}
}

func TestCreateCommitsAndSettles(t *testing.T) {
	quoter := &stubQuoter{breakdown: testBreakdown()}
	committer := &stubCommitter{}
	settler := &stubSettler{}
	svc := newService(quoter, committer, settler, &stubEnqueuer{})

	out, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, order.StatusCommitted, out.Order.Status)
	require.True(t, out.Order.TotalPrice.Equal(dec("185")))

	require.Len(t, committer.committed, 1)
	committed := committer.committed[0]
	require.Len(t, committed.Items, 1)
	require.Equal(t, int64(1), committed.Items[0].ProductID)
	require.Len(t, committed.Vouchers, 1)
	require.Equal(t, int64(5), committed.Vouchers[0].VoucherID)
	require.Equal(t, 1, committed.Vouchers[0].AppliedCount)

	require.Len(t, settler.orderIDs, 1)
	require.Equal(t, committed.ID, settler.orderIDs[0])
	require.Equal(t, []voucher.Usage{{VoucherID: 5, Count: 1}}, settler.usages[0])
}

func TestCreateRaceLostReturnsConflict(t *testing.T) {
	quoter := &stubQuoter{breakdown: testBreakdown()}
	committer := &stubCommitter{}
	settler := &stubSettler{err: voucher.ErrEntitlementRaceLost}
	svc := newService(quoter, committer, settler, &stubEnqueuer{})

	_, err := svc.Create(context.Background(), validInput())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)
	require.Equal(t, "ENTITLEMENT_CONFLICT", appErr.Code)

	// order committed despite the conflict; the details carry its id
	require.Len(t, committer.committed, 1)
	details, ok := appErr.Details.(map[string]any)
	require.True(t, ok)
	require.Equal(t, committer.committed[0].ID.String(), details["orderId"])
}

func TestCreateTransientSettlementFailureEnqueuesRetry(t *testing.T) {
	quoter := &stubQuoter{breakdown: testBreakdown()}
	committer := &stubCommitter{}
	settler := &stubSettler{err: errors.New("db down")}
	enq := &stubEnqueuer{}
	svc := newService(quoter, committer, settler, enq)

	out, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskKindSettlement, enq.tasks[0].Kind)
	require.Equal(t, out.Order.ID.String(), enq.tasks[0].IdempotencyKey)
}

func TestCreateNoVouchersSkipsRetryPath(t *testing.T) {
	breakdown := testBreakdown()
	breakdown.AppliedVouchers = map[int64]int{}
	quoter := &stubQuoter{breakdown: breakdown}
	settler := &stubSettler{}
	enq := &stubEnqueuer{}
	svc := newService(quoter, &stubCommitter{}, settler, enq)

	_, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Len(t, settler.orderIDs, 1)
	require.Empty(t, settler.usages[0])
	require.Empty(t, enq.tasks)
}

func TestCreateNoVouchersSettleFailureEnqueuesRetry(t *testing.T) {
	breakdown := testBreakdown()
	breakdown.AppliedVouchers = map[int64]int{}
	quoter := &stubQuoter{breakdown: breakdown}
	committer := &stubCommitter{}
	settler := &stubSettler{err: errors.New("db down")}
	enq := &stubEnqueuer{}
	svc := newService(quoter, committer, settler, enq)

	out, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Len(t, committer.committed, 1)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskKindSettlement, enq.tasks[0].Kind)
	require.Equal(t, out.Order.ID.String(), enq.tasks[0].IdempotencyKey)
}

func TestCreateMapsPricingErrors(t *testing.T) {
	var appErr *common.AppError

	committer := &stubCommitter{}
	svc := newService(&stubQuoter{err: pricing.ErrProductNotFound}, committer, &stubSettler{}, &stubEnqueuer{})
	_, err := svc.Create(context.Background(), validInput())
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
	require.Empty(t, committer.committed)

	committer = &stubCommitter{}
	svc = newService(&stubQuoter{err: pricing.ErrInvalidLine}, committer, &stubSettler{}, &stubEnqueuer{})
	_, err = svc.Create(context.Background(), validInput())
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	require.Empty(t, committer.committed)
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	svc := newService(&stubQuoter{}, &stubCommitter{}, &stubSettler{}, &stubEnqueuer{})

	cases := []Input{
		{},
		{CustomerID: 1},
		{CustomerID: 1, Lines: []LineInput{{ProductID: 0, Quantity: 1}}},
		{CustomerID: 1, Lines: []LineInput{{ProductID: 1, Quantity: 0}}},
		{CustomerID: 1, Lines: []LineInput{{ProductID: 1, Quantity: 1}}, VoucherIDs: []int64{-3}},
	}
	for _, in := range cases {
		_, err := svc.Create(context.Background(), in)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr, "input %+v", in)
		require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	}
}

func TestCreateSingleWrapsLine(t *testing.T) {
	quoter := &stubQuoter{breakdown: testBreakdown()}
	svc := newService(quoter, &stubCommitter{}, &stubSettler{}, &stubEnqueuer{})

	_, err := svc.CreateSingle(context.Background(), SingleInput{
		CustomerID: 42, ProductID: 1, Quantity: 2, VoucherIDs: []int64{5},
	})
	require.NoError(t, err)
	require.Equal(t, []pricing.Line{{ProductID: 1, Quantity: 2}}, quoter.lastLines)
}

func TestQuoteDoesNotCommit(t *testing.T) {
	quoter := &stubQuoter{breakdown: testBreakdown()}
	committer := &stubCommitter{}
	settler := &stubSettler{}
	svc := newService(quoter, committer, settler, &stubEnqueuer{})

	breakdown, err := svc.Quote(context.Background(), validInput())
	require.NoError(t, err)
	require.True(t, breakdown.TotalPrice.Equal(dec("185")))
	require.Empty(t, committer.committed)
	require.Empty(t, settler.orderIDs)
}
