package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/promokit/orders-api/internal/domain/promotion"
)

type createPromotionRequest struct {
	Code           string   `json:"code,omitempty"`
	EligibleSkus   []string `json:"eligibleSkus,omitempty"`
	DiscountType   string   `json:"discountType"`
	DiscountValue  float64  `json:"discountValue"`
	ExpirationDate string   `json:"expirationDate"`
	UsageLimit     int      `json:"usageLimit"`
}

type updatePromotionRequest struct {
	EligibleSkus   []string `json:"eligibleSkus,omitempty"`
	DiscountType   *string  `json:"discountType,omitempty"`
	DiscountValue  *float64 `json:"discountValue,omitempty"`
	ExpirationDate *string  `json:"expirationDate,omitempty"`
	UsageLimit     *int     `json:"usageLimit,omitempty"`
}

type promotionResponse struct {
	ID             int64     `json:"id"`
	Code           string    `json:"code"`
	EligibleSkus   []string  `json:"eligibleSkus,omitempty"`
	DiscountType   string    `json:"discountType"`
	DiscountValue  float64   `json:"discountValue"`
	ExpirationDate time.Time `json:"expirationDate"`
	UsageLimit     int       `json:"usageLimit"`
}

func (h *Handler) createPromotion(w http.ResponseWriter, r *http.Request) {
	var req createPromotionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.promotions.Create(r.Context(), promotion.CreateInput{
		Code:           req.Code,
		EligibleSkus:   req.EligibleSkus,
		DiscountType:   promotion.DiscountType(req.DiscountType),
		DiscountValue:  decimal.NewFromFloat(req.DiscountValue),
		ExpirationDate: req.ExpirationDate,
		UsageLimit:     req.UsageLimit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPromotionResponse(p))
}

func (h *Handler) listPromotions(w http.ResponseWriter, r *http.Request) {
	promotions, err := h.promotions.FindAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]promotionResponse, len(promotions))
	for i := range promotions {
		resp[i] = toPromotionResponse(&promotions[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getPromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, promotion.ErrNotFound)
		return
	}
	p, err := h.promotions.FindOne(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromotionResponse(p))
}

func (h *Handler) updatePromotion(w http.ResponseWriter, r *http.Request) {
	var req updatePromotionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := promotion.UpdateInput{
		EligibleSkus:   req.EligibleSkus,
		DiscountValue:  optDecimal(req.DiscountValue),
		ExpirationDate: req.ExpirationDate,
		UsageLimit:     req.UsageLimit,
	}
	if req.DiscountType != nil {
		t := promotion.DiscountType(*req.DiscountType)
		in.DiscountType = &t
	}

	p, err := h.promotions.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromotionResponse(p))
}

func (h *Handler) deletePromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, promotion.ErrNotFound)
		return
	}
	if err := h.promotions.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toPromotionResponse(p *promotion.Promotion) promotionResponse {
	return promotionResponse{
		ID:             p.ID,
		Code:           p.Code,
		EligibleSkus:   p.EligibleSkus,
		DiscountType:   string(p.DiscountType),
		DiscountValue:  p.DiscountValue.InexactFloat64(),
		ExpirationDate: p.ExpirationDate,
		UsageLimit:     p.UsageLimit,
	}
}
