package checkout

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/events"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/order"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/queue"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

// TaskKindSettlement is the queue kind used for settlement retry tasks.
const TaskKindSettlement = "voucher-settlement"

// LineInput is one requested product position.
type LineInput struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// Input is a cart checkout or quote request.
type Input struct {
	CustomerID int64       `json:"customerId" validate:"required,gt=0"`
	Lines      []LineInput `json:"lines" validate:"required,min=1,dive"`
	VoucherIDs []int64     `json:"voucherIds" validate:"omitempty,dive,gt=0"`
}

// SingleInput is the single-product checkout shortcut.
type SingleInput struct {
	CustomerID int64   `json:"customerId" validate:"required,gt=0"`
	ProductID  int64   `json:"productId" validate:"required,gt=0"`
	Quantity   int     `json:"quantity" validate:"required,gt=0"`
	VoucherIDs []int64 `json:"voucherIds" validate:"omitempty,dive,gt=0"`
}

// Output is the result of a committed checkout.
type Output struct {
	Order     order.Order       `json:"order"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

// Quoter computes pricing breakdowns.
type Quoter interface {
	Quote(ctx context.Context, customerID int64, lines []pricing.Line, voucherIDs []int64) (pricing.Breakdown, error)
}

// Settler consumes voucher entitlements for a committed order.
type Settler interface {
	Settle(ctx context.Context, orderID uuid.UUID, customerID int64, usages []voucher.Usage) error
}

// Committer persists a priced order atomically.
type Committer interface {
	Commit(ctx context.Context, o order.Order) error
}

// TaskEnqueuer schedules settlement retry tasks.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, t queue.Task) error
}

// Service orchestrates quote, commit and settlement.
type Service struct {
	Engine   Quoter
	Orders   Committer
	Settler  Settler
	Retry    TaskEnqueuer
	Events   *events.Bus
	Validate *validator.Validate
	Logger   *zerolog.Logger
}

// Quote validates the request and computes a breakdown without committing
// anything.
func (s *Service) Quote(ctx context.Context, in Input) (pricing.Breakdown, error) {
	if err := s.validate(in); err != nil {
		return pricing.Breakdown{}, err
	}
	start := time.Now()
	breakdown, err := s.Engine.Quote(ctx, in.CustomerID, toLines(in.Lines), in.VoucherIDs)
	observeQuote(start, err)
	if err != nil {
		return pricing.Breakdown{}, mapPricingError(err)
	}
	return breakdown, nil
}

// Create quotes the request, commits the order and settles the applied
// vouchers. Settlement happens after the commit: a lost entitlement race
// surfaces as a 409 conflict carrying the committed order id, and transient
// settlement failures are retried through the task queue.
func (s *Service) Create(ctx context.Context, in Input) (Output, error) {
	if err := s.validate(in); err != nil {
		return Output{}, err
	}
	start := time.Now()
	breakdown, err := s.Engine.Quote(ctx, in.CustomerID, toLines(in.Lines), in.VoucherIDs)
	observeQuote(start, err)
	if err != nil {
		return Output{}, mapPricingError(err)
	}

	o := buildOrder(in.CustomerID, breakdown)
	if err := s.Orders.Commit(ctx, o); err != nil {
		return Output{}, err
	}
	if obs.OrdersCommittedTotal != nil {
		obs.OrdersCommittedTotal.Inc()
	}
	s.emit(ctx, events.TopicOrderCreated, o.ID, map[string]any{
		"orderId":    o.ID.String(),
		"customerId": o.CustomerID,
		"totalPrice": o.TotalPrice,
	})

	if err := s.settle(ctx, o, breakdown.Usages()); err != nil {
		return Output{}, err
	}
	return Output{Order: o, Breakdown: breakdown}, nil
}

// CreateSingle commits a one-product order.
func (s *Service) CreateSingle(ctx context.Context, in SingleInput) (Output, error) {
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			return Output{}, common.NewAppError("BAD_REQUEST", "invalid checkout payload", http.StatusBadRequest, err)
		}
	}
	return s.Create(ctx, Input{
		CustomerID: in.CustomerID,
		Lines:      []LineInput{{ProductID: in.ProductID, Quantity: in.Quantity}},
		VoucherIDs: in.VoucherIDs,
	})
}

func (s *Service) settle(ctx context.Context, o order.Order, usages []voucher.Usage) error {
	if len(usages) == 0 {
		if err := s.Settler.Settle(ctx, o.ID, o.CustomerID, nil); err != nil {
			if s.Logger != nil {
				s.Logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("mark order settled failed, scheduling retry")
			}
			s.enqueueRetry(ctx, o)
		}
		return nil
	}
	err := s.Settler.Settle(ctx, o.ID, o.CustomerID, usages)
	switch {
	case err == nil:
		if obs.SettlementTotal != nil {
			obs.SettlementTotal.WithLabelValues("ok").Inc()
		}
		s.emit(ctx, events.TopicOrderSettled, o.ID, map[string]any{"orderId": o.ID.String()})
		return nil
	case errors.Is(err, voucher.ErrEntitlementRaceLost):
		if obs.SettlementTotal != nil {
			obs.SettlementTotal.WithLabelValues("conflict").Inc()
		}
		s.emit(ctx, events.TopicSettlementConflict, o.ID, map[string]any{"orderId": o.ID.String()})
		return &common.AppError{
			Code:       "ENTITLEMENT_CONFLICT",
			Message:    "voucher entitlement was consumed by a concurrent checkout",
			HTTPStatus: http.StatusConflict,
			Err:        err,
			Details:    map[string]any{"orderId": o.ID.String()},
		}
	default:
		if obs.SettlementTotal != nil {
			obs.SettlementTotal.WithLabelValues("error").Inc()
		}
		if s.Logger != nil {
			s.Logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("settlement failed, scheduling retry")
		}
		s.enqueueRetry(ctx, o)
		return nil
	}
}

func (s *Service) enqueueRetry(ctx context.Context, o order.Order) {
	if s.Retry == nil {
		return
	}
	payload, err := encodeSettlementTask(o.ID, o.CustomerID)
	if err != nil {
		return
	}
	task := queue.Task{
		Kind:           TaskKindSettlement,
		Payload:        payload,
		IdempotencyKey: o.ID.String(),
		MaxAttempts:    10,
		Delay:          time.Second,
	}
	if err := s.Retry.Enqueue(ctx, task); err != nil {
		if s.Logger != nil {
			s.Logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("settlement retry enqueue failed")
		}
		return
	}
	if obs.SettlementRetryEnqueued != nil {
		obs.SettlementRetryEnqueued.Inc()
	}
}

func (s *Service) emit(ctx context.Context, topic string, aggregate uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, aggregate, payload); err != nil && s.Logger != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Msg("event emit failed")
	}
}

func (s *Service) validate(in Input) error {
	if s.Validate == nil {
		return nil
	}
	if err := s.Validate.Struct(in); err != nil {
		return common.NewAppError("BAD_REQUEST", "invalid checkout payload", http.StatusBadRequest, err)
	}
	return nil
}

func buildOrder(customerID int64, b pricing.Breakdown) order.Order {
	o := order.Order{
		ID:               uuid.New(),
		CustomerID:       customerID,
		Status:           order.StatusCommitted,
		TotalProductCost: b.TotalProductCost,
		TotalFeeCost:     b.TotalFeeCost,
		TotalPrice:       b.TotalPrice,
	}
	for _, line := range b.Lines {
		o.Items = append(o.Items, order.Item{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.LineTotal,
		})
	}
	for _, usage := range b.Usages() {
		o.Vouchers = append(o.Vouchers, order.AppliedVoucher{
			VoucherID:    usage.VoucherID,
			AppliedCount: usage.Count,
		})
	}
	return o
}

func toLines(in []LineInput) []pricing.Line {
	out := make([]pricing.Line, 0, len(in))
	for _, l := range in {
		out = append(out, pricing.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}

func mapPricingError(err error) error {
	switch {
	case errors.Is(err, pricing.ErrInvalidLine):
		return common.NewAppError("INVALID_LINE", "order line is invalid", http.StatusBadRequest, err)
	case errors.Is(err, pricing.ErrProductNotFound):
		return common.NewAppError("PRODUCT_NOT_FOUND", "product does not exist", http.StatusNotFound, err)
	default:
		return err
	}
}

func observeQuote(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if obs.QuoteTotal != nil {
		obs.QuoteTotal.WithLabelValues(result).Inc()
	}
	if obs.QuoteDuration != nil {
		obs.QuoteDuration.Observe(float64(time.Since(start).Milliseconds()))
	}
}

// TxCommitter persists orders inside a single transaction so the order row,
// its items and the applied voucher counts land together.
type TxCommitter struct {
	Pool *pgxpool.Pool
}

func (c TxCommitter) Commit(ctx context.Context, o order.Order) error {
	if c.Pool == nil {
		return errors.New("checkout: pool not configured")
	}
	tx, err := c.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := order.New(tx).Create(ctx, o); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
