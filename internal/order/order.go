package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses. An order is committed the moment its transaction lands and
// settled once every applied voucher entitlement has been consumed.
const (
	StatusCommitted = "COMMITTED"
	StatusSettled   = "SETTLED"
)

// Item is one priced product position persisted with an order.
type Item struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// AppliedVoucher records how many uses of a voucher an order consumed.
type AppliedVoucher struct {
	VoucherID    int64 `json:"voucherId"`
	AppliedCount int   `json:"appliedCount"`
}

// Order is a committed checkout with its frozen pricing breakdown.
type Order struct {
	ID               uuid.UUID        `json:"id"`
	CustomerID       int64            `json:"customerId"`
	Status           string           `json:"status"`
	TotalProductCost decimal.Decimal  `json:"totalProductCost"`
	TotalFeeCost     decimal.Decimal  `json:"totalFeeCost"`
	TotalPrice       decimal.Decimal  `json:"totalPrice"`
	CreatedAt        time.Time        `json:"createdAt"`
	SettledAt        *time.Time       `json:"settledAt,omitempty"`
	Items            []Item           `json:"items,omitempty"`
	Vouchers         []AppliedVoucher `json:"vouchers,omitempty"`
}
