// Package handler exposes the HTTP API: order placement plus the voucher
// and promotion administrative surfaces.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/promokit/orders-api/internal/domain/order"
	"github.com/promokit/orders-api/internal/domain/promotion"
	"github.com/promokit/orders-api/internal/domain/voucher"
)

// OrderService is the order surface the handler needs.
type OrderService interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	FindAll(ctx context.Context) ([]order.Order, error)
	FindOne(ctx context.Context, id int64) (*order.Order, error)
	Delete(ctx context.Context, id int64) error
}

// VoucherService is the voucher admin surface the handler needs.
type VoucherService interface {
	Create(ctx context.Context, in voucher.CreateInput) (*voucher.Voucher, error)
	FindAll(ctx context.Context) ([]voucher.Voucher, error)
	FindOne(ctx context.Context, id int64) (*voucher.Voucher, error)
	Update(ctx context.Context, code string, in voucher.UpdateInput) (*voucher.Voucher, error)
	Delete(ctx context.Context, id int64) error
}

// PromotionService is the promotion admin surface the handler needs.
type PromotionService interface {
	Create(ctx context.Context, in promotion.CreateInput) (*promotion.Promotion, error)
	FindAll(ctx context.Context) ([]promotion.Promotion, error)
	FindOne(ctx context.Context, id int64) (*promotion.Promotion, error)
	Update(ctx context.Context, code string, in promotion.UpdateInput) (*promotion.Promotion, error)
	Delete(ctx context.Context, id int64) error
}

// TokenIssuer signs and verifies the bearer tokens guarding the API.
type TokenIssuer interface {
	Issue(subject string) (string, error)
	Verify(raw string) (string, error)
}

// Credentials holds the admin login pair, injected from configuration.
type Credentials struct {
	Username string
	Password string
}

// Handler wires the domain services into the HTTP router.
type Handler struct {
	orders     OrderService
	vouchers   VoucherService
	promotions PromotionService
	tokens     TokenIssuer
	creds      Credentials
}

// New constructs a Handler with the required domain dependencies.
func New(
	orders OrderService,
	vouchers VoucherService,
	promotions PromotionService,
	tokens TokenIssuer,
	creds Credentials,
) *Handler {
	return &Handler{
		orders:     orders,
		vouchers:   vouchers,
		promotions: promotions,
		tokens:     tokens,
		creds:      creds,
	}
}

// Routes returns the API router. Everything except login requires a valid
// bearer token.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.requireToken)

		r.Route("/order", func(r chi.Router) {
			r.Post("/", h.createOrder)
			r.Get("/", h.listOrders)
			r.Get("/{id}", h.getOrder)
			r.Delete("/{id}", h.deleteOrder)
		})

		// chi allows one wildcard name per position, so PATCH reuses {id}
		// even though it addresses the entity by code.
		r.Route("/voucher", func(r chi.Router) {
			r.Post("/", h.createVoucher)
			r.Get("/", h.listVouchers)
			r.Get("/{id}", h.getVoucher)
			r.Patch("/{id}", h.updateVoucher)
			r.Delete("/{id}", h.deleteVoucher)
		})

		r.Route("/promotion", func(r chi.Router) {
			r.Post("/", h.createPromotion)
			r.Get("/", h.listPromotions)
			r.Get("/{id}", h.getPromotion)
			r.Patch("/{id}", h.updatePromotion)
			r.Delete("/{id}", h.deletePromotion)
		})
	})

	return r
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to its HTTP status and writes the JSON
// error body. Unrecognized errors are logged and surfaced as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, voucher.ErrNotFound),
		errors.Is(err, promotion.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, voucher.ErrCodeExists),
		errors.Is(err, promotion.ErrCodeExists),
		errors.Is(err, voucher.ErrInUse),
		errors.Is(err, promotion.ErrInUse):
		return http.StatusConflict

	case errors.Is(err, order.ErrNoProducts),
		errors.Is(err, order.ErrSameCode),
		errors.Is(err, voucher.ErrExpired),
		errors.Is(err, voucher.ErrUsageLimitReached),
		errors.Is(err, voucher.ErrMinOrderNotMet),
		errors.Is(err, promotion.ErrExpired),
		errors.Is(err, promotion.ErrUsageLimitReached),
		errors.Is(err, promotion.ErrNoEligibleSkus),
		errors.Is(err, promotion.ErrNotApplicable):
		return http.StatusBadRequest
	}

	var (
		priceErr      *order.InvalidPriceError
		voucherVErr   *voucher.ValidationError
		promotionVErr *promotion.ValidationError
	)
	if errors.As(err, &priceErr) || errors.As(err, &voucherVErr) || errors.As(err, &promotionVErr) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid request body",
		})
		return false
	}
	return true
}
