package catalog

import (
	"github.com/shopspring/decimal"
)

// Value kinds shared by discounts and fees.
const (
	KindPercentage = "percentage"
	KindFixed      = "fixed"
)

// Fee categories routed by the pricing engine.
const (
	FeeShipping = "shipping"
	FeePayment  = "payment"
)

// Discount is the standing price reduction attached to a product. A product
// carries at most one.
type Discount struct {
	Kind  string          `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// FeeLink materialises a fee rule attached to a product.
type FeeLink struct {
	FeeID    int64           `json:"feeId"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Kind     string          `json:"kind"`
	Value    decimal.Decimal `json:"value"`
}

// Product is the read model the pricing engine consumes. BasePrice is the
// catalog price before any discount or voucher adjustment.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"basePrice"`
	Discount  *Discount       `json:"discount,omitempty"`
	FeeLinks  []FeeLink       `json:"feeLinks,omitempty"`
}
