package voucher

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Application pairs a voucher with the number of uses that may be applied in
// one scope: the requested count clamped by the customer's remaining
// entitlement.
type Application struct {
	Voucher    Voucher
	ApplyCount int
}

// Applications clamps each scoped voucher against the request multiset and
// the remaining entitlement map. Vouchers with a zero clamp are dropped, so
// every returned application carries at least one use.
func Applications(scoped []Voucher, requested Request, remaining map[int64]int) []Application {
	apps := make([]Application, 0, len(scoped))
	for _, v := range scoped {
		count := requested[v.ID]
		if rem := remaining[v.ID]; rem < count {
			count = rem
		}
		if count <= 0 {
			continue
		}
		apps = append(apps, Application{Voucher: v, ApplyCount: count})
	}
	return apps
}

// Apply adjusts a base amount by an application set. Vouchers of the same
// scope combine additively: percentage totals are applied first, fixed
// amounts are subtracted afterwards, and the result is floored at zero.
func Apply(base decimal.Decimal, apps []Application) decimal.Decimal {
	if base.IsNegative() {
		base = decimal.Zero
	}
	if len(apps) == 0 {
		return base
	}
	totalPercentage := decimal.Zero
	totalFixed := decimal.Zero
	for _, app := range apps {
		weight := decimal.NewFromInt(int64(app.ApplyCount))
		switch app.Voucher.Kind {
		case KindPercentage:
			totalPercentage = totalPercentage.Add(app.Voucher.Value.Mul(weight))
		case KindFixed:
			totalFixed = totalFixed.Add(app.Voucher.Value.Mul(weight))
		}
	}
	adjusted := base.Mul(hundred.Sub(totalPercentage)).Div(hundred).Sub(totalFixed)
	if adjusted.IsNegative() {
		return decimal.Zero
	}
	return adjusted
}
