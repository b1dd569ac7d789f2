package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promokit/orders-api/internal/domain/order"
)

type orderLine struct {
	SKU   string  `json:"sku"`
	Price float64 `json:"price"`
}

type createOrderRequest struct {
	Products      []orderLine `json:"products"`
	VoucherCode   string      `json:"voucherCode,omitempty"`
	PromotionCode string      `json:"promotionCode,omitempty"`
}

type orderResponse struct {
	ID              int64              `json:"id"`
	Products        []orderLine        `json:"products"`
	DiscountApplied float64            `json:"discountApplied"`
	Voucher         *voucherResponse   `json:"voucher,omitempty"`
	Promotion       *promotionResponse `json:"promotion,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	products := make([]order.Line, len(req.Products))
	for i, l := range req.Products {
		products[i] = order.Line{
			SKU:   l.SKU,
			Price: decimal.NewFromFloat(l.Price),
		}
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		Products:      products,
		VoucherCode:   req.VoucherCode,
		PromotionCode: req.PromotionCode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.FindAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, order.ErrNotFound)
		return
	}
	o, err := h.orders.FindOne(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, order.ErrNotFound)
		return
	}
	if err := h.orders.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toOrderResponse(o *order.Order) orderResponse {
	lines := make([]orderLine, len(o.Products))
	for i, l := range o.Products {
		lines[i] = orderLine{SKU: l.SKU, Price: l.Price.InexactFloat64()}
	}
	resp := orderResponse{
		ID:              o.ID,
		Products:        lines,
		DiscountApplied: o.DiscountApplied.InexactFloat64(),
		CreatedAt:       o.CreatedAt,
	}
	if o.Voucher != nil {
		v := toVoucherResponse(o.Voucher)
		resp.Voucher = &v
	}
	if o.Promotion != nil {
		p := toPromotionResponse(o.Promotion)
		resp.Promotion = &p
	}
	return resp
}
