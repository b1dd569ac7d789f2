package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/promokit/orders-api/internal/domain/voucher"
)

type createVoucherRequest struct {
	Code           string   `json:"code,omitempty"`
	DiscountType   string   `json:"discountType"`
	DiscountValue  float64  `json:"discountValue"`
	ExpirationDate string   `json:"expirationDate"`
	UsageLimit     int      `json:"usageLimit"`
	MinOrderValue  *float64 `json:"minOrderValue,omitempty"`
}

type updateVoucherRequest struct {
	DiscountType   *string  `json:"discountType,omitempty"`
	DiscountValue  *float64 `json:"discountValue,omitempty"`
	ExpirationDate *string  `json:"expirationDate,omitempty"`
	UsageLimit     *int     `json:"usageLimit,omitempty"`
	MinOrderValue  *float64 `json:"minOrderValue,omitempty"`
}

type voucherResponse struct {
	ID             int64     `json:"id"`
	Code           string    `json:"code"`
	DiscountType   string    `json:"discountType"`
	DiscountValue  float64   `json:"discountValue"`
	ExpirationDate time.Time `json:"expirationDate"`
	UsageLimit     int       `json:"usageLimit"`
	UsedCount      int       `json:"usedCount"`
	MinOrderValue  *float64  `json:"minOrderValue,omitempty"`
}

func (h *Handler) createVoucher(w http.ResponseWriter, r *http.Request) {
	var req createVoucherRequest
	if !decodeBody(w, r, &req) {
		return
	}

	v, err := h.vouchers.Create(r.Context(), voucher.CreateInput{
		Code:           req.Code,
		DiscountType:   voucher.DiscountType(req.DiscountType),
		DiscountValue:  decimal.NewFromFloat(req.DiscountValue),
		ExpirationDate: req.ExpirationDate,
		UsageLimit:     req.UsageLimit,
		MinOrderValue:  optDecimal(req.MinOrderValue),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVoucherResponse(v))
}

func (h *Handler) listVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.vouchers.FindAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]voucherResponse, len(vouchers))
	for i := range vouchers {
		resp[i] = toVoucherResponse(&vouchers[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, voucher.ErrNotFound)
		return
	}
	v, err := h.vouchers.FindOne(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherResponse(v))
}

func (h *Handler) updateVoucher(w http.ResponseWriter, r *http.Request) {
	var req updateVoucherRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := voucher.UpdateInput{
		DiscountValue:  optDecimal(req.DiscountValue),
		ExpirationDate: req.ExpirationDate,
		UsageLimit:     req.UsageLimit,
		MinOrderValue:  optDecimal(req.MinOrderValue),
	}
	if req.DiscountType != nil {
		t := voucher.DiscountType(*req.DiscountType)
		in.DiscountType = &t
	}

	v, err := h.vouchers.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherResponse(v))
}

func (h *Handler) deleteVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, voucher.ErrNotFound)
		return
	}
	if err := h.vouchers.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toVoucherResponse(v *voucher.Voucher) voucherResponse {
	resp := voucherResponse{
		ID:             v.ID,
		Code:           v.Code,
		DiscountType:   string(v.DiscountType),
		DiscountValue:  v.DiscountValue.InexactFloat64(),
		ExpirationDate: v.ExpirationDate,
		UsageLimit:     v.UsageLimit,
		UsedCount:      v.UsedCount,
	}
	if v.MinOrderValue != nil {
		f := v.MinOrderValue.InexactFloat64()
		resp.MinOrderValue = &f
	}
	return resp
}

func optDecimal(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}
