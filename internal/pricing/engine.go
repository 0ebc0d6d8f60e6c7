package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/catalog"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

var (
	// ErrProductNotFound aborts a quote when any line references an unknown
	// product. Partial quotes are never returned.
	ErrProductNotFound = errors.New("pricing: product not found")
	// ErrInvalidLine rejects a line before any lookup happens.
	ErrInvalidLine = errors.New("pricing: invalid order line")
)

// Line is one product position in a quote request.
type Line struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// LinePrice is the priced form of a Line. UnitPrice already reflects the
// product discount and any product-scoped vouchers; BasePrice is the catalog
// price fees are computed from.
type LinePrice struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	BasePrice decimal.Decimal `json:"basePrice"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// FeeCharge is one aggregated fee across all lines, after fee-scoped voucher
// adjustment of its category total.
type FeeCharge struct {
	FeeID    int64           `json:"feeId"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// Breakdown is the full result of a quote. AppliedVouchers maps voucher id to
// the number of uses the quote consumed; settlement decrements by exactly
// these counts.
type Breakdown struct {
	Lines            []LinePrice     `json:"lines"`
	Fees             []FeeCharge     `json:"fees"`
	TotalProductCost decimal.Decimal `json:"totalProductCost"`
	TotalFeeCost     decimal.Decimal `json:"totalFeeCost"`
	TotalPrice       decimal.Decimal `json:"totalPrice"`
	AppliedVouchers  map[int64]int   `json:"appliedVouchers"`
}

// Usages converts the applied counts to the settlement input form, ordered by
// voucher id for deterministic settlement.
func (b Breakdown) Usages() []voucher.Usage {
	out := make([]voucher.Usage, 0, len(b.AppliedVouchers))
	for id, count := range b.AppliedVouchers {
		out = append(out, voucher.Usage{VoucherID: id, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VoucherID < out[j].VoucherID })
	return out
}

// Catalog resolves the product read models a quote prices.
type Catalog interface {
	ProductsByID(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
}

// Entitlements resolves how many uses of each voucher the customer has left.
type Entitlements interface {
	RemainingUses(ctx context.Context, customerID int64, voucherIDs []int64) (map[int64]int, error)
}

// Scopes filters a voucher id set down to the vouchers valid in each scope.
type Scopes interface {
	ProductVouchers(ctx context.Context, productID int64, ids []int64) ([]voucher.Voucher, error)
	ShippingVouchers(ctx context.Context, ids []int64) ([]voucher.Voucher, error)
	PaymentVouchers(ctx context.Context, ids []int64) ([]voucher.Voucher, error)
}

// Engine computes quote breakdowns. It performs reads only; committing and
// settling a quote is the checkout service's job.
type Engine struct {
	Catalog      Catalog
	Entitlements Entitlements
	Scopes       Scopes
}

// Quote prices the given lines for a customer with the requested vouchers.
// The same inputs against unchanged data always produce the same breakdown.
func (e *Engine) Quote(ctx context.Context, customerID int64, lines []Line, voucherIDs []int64) (Breakdown, error) {
	if len(lines) == 0 {
		return Breakdown{}, fmt.Errorf("%w: empty line set", ErrInvalidLine)
	}
	productIDs := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for _, line := range lines {
		if line.ProductID <= 0 {
			return Breakdown{}, fmt.Errorf("%w: product id %d", ErrInvalidLine, line.ProductID)
		}
		if line.Quantity <= 0 {
			return Breakdown{}, fmt.Errorf("%w: quantity %d for product %d", ErrInvalidLine, line.Quantity, line.ProductID)
		}
		if seen[line.ProductID] {
			return Breakdown{}, fmt.Errorf("%w: duplicate product %d", ErrInvalidLine, line.ProductID)
		}
		seen[line.ProductID] = true
		productIDs = append(productIDs, line.ProductID)
	}

	requested := voucher.NewRequest(voucherIDs)
	distinct := requested.Distinct()
	remaining, err := e.Entitlements.RemainingUses(ctx, customerID, distinct)
	if err != nil {
		return Breakdown{}, err
	}

	products, err := e.Catalog.ProductsByID(ctx, productIDs)
	if err != nil {
		return Breakdown{}, err
	}
	for _, id := range productIDs {
		if _, ok := products[id]; !ok {
			return Breakdown{}, fmt.Errorf("product %d: %w", id, ErrProductNotFound)
		}
	}

	breakdown := Breakdown{
		TotalProductCost: decimal.Zero,
		TotalFeeCost:     decimal.Zero,
		AppliedVouchers:  make(map[int64]int),
	}

	// Fee percentages are always taken from the undiscounted base price, so
	// fees are aggregated while lines are priced and adjusted afterwards.
	feeTotals := make(map[int64]*FeeCharge)
	var feeOrder []int64

	for _, line := range lines {
		product := products[line.ProductID]
		unit := discounted(product)

		scoped, err := e.Scopes.ProductVouchers(ctx, line.ProductID, distinct)
		if err != nil {
			return Breakdown{}, err
		}
		apps := voucher.Applications(scoped, requested, remaining)
		unit = voucher.Apply(unit, apps)
		breakdown.recordApplied(apps)
		observeApplied("product", apps)

		qty := decimal.NewFromInt(int64(line.Quantity))
		lineTotal := unit.Mul(qty)
		breakdown.Lines = append(breakdown.Lines, LinePrice{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			BasePrice: product.BasePrice,
			UnitPrice: unit,
			LineTotal: lineTotal,
		})
		breakdown.TotalProductCost = breakdown.TotalProductCost.Add(lineTotal)

		for _, link := range product.FeeLinks {
			amount := feeAmount(link, product.BasePrice).Mul(qty)
			charge, ok := feeTotals[link.FeeID]
			if !ok {
				charge = &FeeCharge{FeeID: link.FeeID, Name: link.Name, Category: link.Category, Amount: decimal.Zero}
				feeTotals[link.FeeID] = charge
				feeOrder = append(feeOrder, link.FeeID)
			}
			charge.Amount = charge.Amount.Add(amount)
		}
	}

	shippingTotal, paymentTotal := decimal.Zero, decimal.Zero
	for _, id := range feeOrder {
		charge := feeTotals[id]
		switch charge.Category {
		case catalog.FeeShipping:
			shippingTotal = shippingTotal.Add(charge.Amount)
		case catalog.FeePayment:
			paymentTotal = paymentTotal.Add(charge.Amount)
		}
		breakdown.Fees = append(breakdown.Fees, *charge)
	}

	if shippingTotal.IsPositive() {
		scoped, err := e.Scopes.ShippingVouchers(ctx, distinct)
		if err != nil {
			return Breakdown{}, err
		}
		apps := voucher.Applications(scoped, requested, remaining)
		shippingTotal = voucher.Apply(shippingTotal, apps)
		breakdown.recordApplied(apps)
		observeApplied("shipping", apps)
	}
	if paymentTotal.IsPositive() {
		scoped, err := e.Scopes.PaymentVouchers(ctx, distinct)
		if err != nil {
			return Breakdown{}, err
		}
		apps := voucher.Applications(scoped, requested, remaining)
		paymentTotal = voucher.Apply(paymentTotal, apps)
		breakdown.recordApplied(apps)
		observeApplied("payment", apps)
	}

	breakdown.TotalFeeCost = shippingTotal.Add(paymentTotal)
	breakdown.TotalPrice = breakdown.TotalProductCost.Add(breakdown.TotalFeeCost)
	return breakdown, nil
}

// recordApplied notes the consumed uses per voucher. The clamp against the
// request and entitlement is scope independent, so a voucher applied in
// several scopes consumes its uses once.
func (b *Breakdown) recordApplied(apps []voucher.Application) {
	for _, app := range apps {
		if app.ApplyCount > b.AppliedVouchers[app.Voucher.ID] {
			b.AppliedVouchers[app.Voucher.ID] = app.ApplyCount
		}
	}
}

func observeApplied(scope string, apps []voucher.Application) {
	if obs.VoucherAppliedTotal == nil {
		return
	}
	for _, app := range apps {
		if app.ApplyCount > 0 {
			obs.VoucherAppliedTotal.WithLabelValues(scope).Add(float64(app.ApplyCount))
		}
	}
}

func discounted(p catalog.Product) decimal.Decimal {
	price := p.BasePrice
	if p.Discount == nil {
		return price
	}
	switch p.Discount.Kind {
	case catalog.KindPercentage:
		price = price.Mul(hundredSub(p.Discount.Value)).Div(decimal.NewFromInt(100))
	case catalog.KindFixed:
		price = price.Sub(p.Discount.Value)
	}
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

func feeAmount(link catalog.FeeLink, basePrice decimal.Decimal) decimal.Decimal {
	switch link.Kind {
	case catalog.KindPercentage:
		return basePrice.Mul(link.Value).Div(decimal.NewFromInt(100))
	case catalog.KindFixed:
		return link.Value
	}
	return decimal.Zero
}

func hundredSub(pct decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(100).Sub(pct)
}
