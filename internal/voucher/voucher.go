package voucher

import (
	"github.com/shopspring/decimal"
)

// Voucher value kinds. Percentage values are expressed 0-100.
const (
	KindPercentage = "percentage"
	KindFixed      = "fixed"
)

// Voucher is the read model used by the pricing engine. A voucher only takes
// effect within the scopes it is linked to.
type Voucher struct {
	ID    int64           `json:"id"`
	Code  string          `json:"code"`
	Kind  string          `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// Request is the multiset of voucher ids a checkout asked for. Duplicates in
// the caller's list become multi-use counts.
type Request map[int64]int

// NewRequest builds a Request from the raw id list. Non-positive ids are
// dropped so a count can never be attached to an invalid key.
func NewRequest(ids []int64) Request {
	req := make(Request, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		req[id]++
	}
	return req
}

// Distinct returns the unique voucher ids in the request.
func (r Request) Distinct() []int64 {
	out := make([]int64, 0, len(r))
	for id := range r {
		out = append(out, id)
	}
	return out
}

// Usage records how many uses of a voucher a checkout actually consumed.
type Usage struct {
	VoucherID int64 `json:"voucherId"`
	Count     int   `json:"count"`
}
