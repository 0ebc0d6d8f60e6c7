package voucher

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// Handler exposes voucher read endpoints.
type Handler struct {
	Repo Repo
}

// CustomerVouchers serves GET /customers/{customerID}/vouchers.
func (h *Handler) CustomerVouchers(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil || customerID <= 0 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid customer id", nil)
		return
	}
	vouchers, err := h.Repo.CustomerVouchers(r.Context(), customerID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "list vouchers", nil)
		return
	}
	if vouchers == nil {
		vouchers = []CustomerVoucher{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": vouchers})
}
