package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/pawshop-checkout/internal/cart"
	"github.com/joao-fontenele/pawshop-checkout/internal/checkout"
	"github.com/joao-fontenele/pawshop-checkout/internal/coupon"
	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
	"github.com/joao-fontenele/pawshop-checkout/internal/shopapi"
	"github.com/joao-fontenele/pawshop-checkout/internal/telemetry"
)

type Catalog interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

type Handler struct {
	registry *Registry
	catalog  Catalog
	metrics  *Metrics
	logger   *slog.Logger
}

// NewHandler wires the routes to the session registry. metrics may be nil.
func NewHandler(registry *Registry, catalog Catalog, metrics *Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		catalog:  catalog,
		metrics:  metrics,
		logger:   logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(h.HandleListProducts))
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(h.withSession(h.HandleGetCart)))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(h.withSession(h.HandleAddItem)))
	mux.HandleFunc("PATCH /cart/items/{productId}", telemetry.WithHTTPRoute(h.withSession(h.HandleSetQuantity)))
	mux.HandleFunc("DELETE /cart/items/{productId}", telemetry.WithHTTPRoute(h.withSession(h.HandleRemoveItem)))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(h.withSession(h.HandleClearCart)))
	mux.HandleFunc("POST /cart/coupon", telemetry.WithHTTPRoute(h.withSession(h.HandleApplyCoupon)))
	mux.HandleFunc("DELETE /cart/coupon", telemetry.WithHTTPRoute(h.withSession(h.HandleRemoveCoupon)))
	mux.HandleFunc("GET /checkout", telemetry.WithHTTPRoute(h.withSession(h.HandleCheckoutState)))
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(h.withSession(h.HandleCheckout)))
	mux.HandleFunc("GET /healthz", h.HandleHealth)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *Session)

func (h *Handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, created := h.registry.Get(r.Header.Get(SessionHeader))
		if created {
			h.logger.Info("session started", "session_id", s.ID)
		}
		w.Header().Set(SessionHeader, s.ID)
		next(w, r, s)
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, newProductResponse(p))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGetCart(w http.ResponseWriter, _ *http.Request, s *Session) {
	h.writeJSON(w, http.StatusOK, newCartResponse(s.Cart.Snapshot()))
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request, s *Session) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		h.writeError(w, http.StatusUnprocessableEntity, cart.ErrMissingProductID.Error())
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity <= 0 {
		h.writeError(w, http.StatusUnprocessableEntity, cart.ErrInvalidQuantity.Error())
		return
	}
	if quantity > cart.MaxLineQuantity {
		h.writeError(w, http.StatusUnprocessableEntity, cart.ErrQuantityTooLarge.Error())
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), req.ProductID)
	if errors.Is(err, shopapi.ErrProductNotFound) {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to look up product", "error", err, "product_id", req.ProductID)
		h.writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}

	snap, err := s.Cart.AddItem(product, quantity)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.metrics.cartMutation(r.Context(), "add")
	h.logger.Info("item added to cart", "session_id", s.ID, "product_id", product.ID, "quantity", quantity)
	h.writeJSON(w, http.StatusOK, newCartResponse(snap))
}

func (h *Handler) HandleSetQuantity(w http.ResponseWriter, r *http.Request, s *Session) {
	productID := r.PathValue("productId")

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := s.Cart.SetQuantity(productID, *req.Quantity)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.metrics.cartMutation(r.Context(), "set_quantity")
	h.writeJSON(w, http.StatusOK, newCartResponse(snap))
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request, s *Session) {
	snap := s.Cart.RemoveItem(r.PathValue("productId"))

	h.metrics.cartMutation(r.Context(), "remove")
	h.writeJSON(w, http.StatusOK, newCartResponse(snap))
}

func (h *Handler) HandleClearCart(w http.ResponseWriter, r *http.Request, s *Session) {
	snap := s.Cart.Clear()

	h.metrics.cartMutation(r.Context(), "clear")
	h.writeJSON(w, http.StatusOK, newCartResponse(snap))
}

func (h *Handler) HandleApplyCoupon(w http.ResponseWriter, r *http.Request, s *Session) {
	var req applyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := s.Coupons.Apply(r.Context(), req.Code)
	if err != nil {
		var rejected *coupon.RejectedError
		switch {
		case errors.As(err, &rejected):
			h.metrics.couponResult(r.Context(), "rejected")
			h.writeError(w, http.StatusUnprocessableEntity, rejected.Reason)
		case errors.Is(err, coupon.ErrEmptyCode):
			h.writeError(w, http.StatusUnprocessableEntity, "Please enter a coupon code")
		case errors.Is(err, coupon.ErrEmptyCart), errors.Is(err, coupon.ErrApplyInFlight), errors.Is(err, coupon.ErrCartChanged):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.metrics.couponResult(r.Context(), "error")
			h.logger.Error("failed to apply coupon", "error", err, "session_id", s.ID)
			h.writeError(w, http.StatusBadGateway, "Failed to validate coupon")
		}
		return
	}

	h.metrics.couponResult(r.Context(), "applied")
	h.writeJSON(w, http.StatusOK, newCartResponse(snap))
}

func (h *Handler) HandleRemoveCoupon(w http.ResponseWriter, r *http.Request, s *Session) {
	snap := s.Coupons.Remove()
	h.writeJSON(w, http.StatusOK, newCartResponse(snap))
}

func (h *Handler) HandleCheckoutState(w http.ResponseWriter, _ *http.Request, s *Session) {
	resp := checkoutStateResponse{
		State:       string(s.Checkout.State()),
		FieldErrors: s.Checkout.FieldErrors(),
	}
	if err := s.Checkout.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request, s *Session) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := s.Checkout.Submit(r.Context(), req.draft())
	if err != nil {
		h.writeCheckoutError(w, r, s, err)
		return
	}

	h.metrics.checkoutOutcome(r.Context(), "created")
	h.metrics.orderCreated(r.Context(), order.Total)
	h.logger.Info("checkout complete", "session_id", s.ID, "order_id", order.ID)
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"order": newOrderResponse(order),
		"cart":  newCartResponse(s.Cart.Snapshot()),
	})
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, s *Session, err error) {
	var verr *checkout.ValidationError
	var serr *checkout.SubmitError

	switch {
	case errors.As(err, &verr):
		h.metrics.checkoutOutcome(r.Context(), "invalid")
		h.writeFieldErrors(w, "Please correct the highlighted fields", verr.Fields)
	case errors.Is(err, checkout.ErrCartEmpty), errors.Is(err, checkout.ErrSubmissionInFlight):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, checkout.ErrSubmissionAbandoned):
		h.metrics.checkoutOutcome(r.Context(), "abandoned")
		h.logger.Warn("order submission abandoned before the order api answered", "error", err, "session_id", s.ID)
		h.writeError(w, http.StatusServiceUnavailable, "Order submission was interrupted, please submit again")
	case errors.As(err, &serr):
		h.metrics.checkoutOutcome(r.Context(), "failed")
		h.logger.Error("order submission failed", "error", err, "session_id", s.ID)
		if fields := serr.Fields(); len(fields) > 0 {
			h.writeFieldErrors(w, "The order was rejected", fields)
			return
		}
		h.writeError(w, http.StatusBadGateway, "Failed to place order")
	default:
		h.logger.Error("unexpected checkout error", "error", err, "session_id", s.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeFieldErrors(w http.ResponseWriter, message string, fields map[string]string) {
	h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":        message,
		"field_errors": fields,
	})
}
