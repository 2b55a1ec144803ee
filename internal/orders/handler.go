package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
	"github.com/joao-fontenele/pawshop-checkout/internal/money"
)

const idempotencyScope = "orders"

type Repository interface {
	Create(ctx context.Context, order *domain.Order, idempotencyKey string) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Unlock(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	repo        Repository
	idempotency IdempotencyStore
	producer    Publisher
	logger      *slog.Logger
}

// NewHandler builds the order API. idempotency and producer may be nil.
func NewHandler(repo Repository, idempotency IdempotencyStore, producer Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		repo:        repo,
		idempotency: idempotency,
		producer:    producer,
		logger:      logger,
	}
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var sub domain.OrderSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sub.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	if errs := validateSubmission(sub); len(errs) > 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	ctx := r.Context()
	key := sub.IdempotencyKey

	if key != "" && h.idempotency != nil {
		locked, err := h.idempotency.TryLock(ctx, idempotencyScope, key)
		if err != nil {
			h.logger.Error("failed to take idempotency lock", "error", err, "idempotency_key", key)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !locked {
			h.replay(w, r, key)
			return
		}
	} else if key != "" {
		existing, err := h.repo.GetByIdempotencyKey(ctx, key)
		if err != nil {
			h.logger.Error("failed to look up idempotency key", "error", err, "idempotency_key", key)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if existing != nil {
			h.writeReplay(w, existing, key)
			return
		}
	}

	order := newOrder(sub)

	if err := h.repo.Create(ctx, order, key); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			h.replayStored(w, r, key)
			return
		}
		h.logger.Error("failed to create order", "error", err)
		if key != "" && h.idempotency != nil {
			if err := h.idempotency.Unlock(ctx, idempotencyScope, key); err != nil {
				h.logger.Error("failed to release idempotency lock", "error", err, "idempotency_key", key)
			}
		}
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if key != "" && h.idempotency != nil {
		if err := h.idempotency.Remember(ctx, idempotencyScope, key, order.ID); err != nil {
			h.logger.Error("failed to remember idempotency key", "error", err, "order_id", order.ID)
		}
	}

	if h.producer != nil {
		event := domain.OrderCreatedEvent{
			OrderID:    order.ID,
			CouponCode: order.CouponCode,
			ItemCount:  len(order.Items),
			Total:      order.Total,
			Timestamp:  order.CreatedAt,
		}
		if err := h.producer.Publish(ctx, order.ID, event); err != nil {
			h.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order created", "order_id", order.ID, "total", money.String(order.Total), "coupon_code", order.CouponCode)
	h.writeJSON(w, http.StatusCreated, order)
}

// replay answers a repeated Idempotency-Key with the order the first request
// created, or 409 while that request is still running.
func (h *Handler) replay(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()

	orderID, ok, err := h.idempotency.Recall(ctx, idempotencyScope, key)
	if err != nil {
		h.logger.Error("failed to recall idempotency key", "error", err, "idempotency_key", key)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var order *domain.Order
	if ok {
		order, err = h.repo.GetByID(ctx, orderID)
	} else {
		order, err = h.repo.GetByIdempotencyKey(ctx, key)
	}
	if err != nil {
		h.logger.Error("failed to load replayed order", "error", err, "idempotency_key", key)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusConflict, "a request with this idempotency key is in progress")
		return
	}

	h.writeReplay(w, order, key)
}

// replayStored answers a request that lost the race to store its idempotency
// key with the order the winning request stored.
func (h *Handler) replayStored(w http.ResponseWriter, r *http.Request, key string) {
	order, err := h.repo.GetByIdempotencyKey(r.Context(), key)
	if err != nil {
		h.logger.Error("failed to load replayed order", "error", err, "idempotency_key", key)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusConflict, "a request with this idempotency key is in progress")
		return
	}
	h.writeReplay(w, order, key)
}

func (h *Handler) writeReplay(w http.ResponseWriter, order *domain.Order, key string) {
	h.logger.Info("replayed order for idempotency key", "order_id", order.ID, "idempotency_key", key)
	w.Header().Set("Idempotent-Replayed", "true")
	h.writeJSON(w, http.StatusOK, order)
}

func newOrder(sub domain.OrderSubmission) *domain.Order {
	items := make([]domain.OrderItem, len(sub.Items))
	for i, item := range sub.Items {
		item.LineTotal = money.Round(money.Times(item.UnitPrice, item.Quantity))
		items[i] = item
	}

	card := sub.Payment.CardNumber
	last4 := card
	if len(card) > 4 {
		last4 = card[len(card)-4:]
	}

	billing := sub.BillingAddress
	if sub.BillingSameAsShipping {
		billing = sub.ShippingAddress
	}

	return &domain.Order{
		Status:          domain.OrderStatusPending,
		Items:           items,
		ShippingAddress: sub.ShippingAddress,
		BillingAddress:  billing,
		CouponCode:      sub.CouponCode,
		Notes:           sub.Notes,
		CardLast4:       last4,
		Subtotal:        money.Round(sub.Subtotal),
		Discount:        money.Round(sub.Discount),
		Shipping:        money.Round(sub.Shipping),
		Tax:             money.Round(sub.Tax),
		Total:           money.Round(sub.Total),
		CreatedAt:       time.Now().UTC(),
	}
}

var penny = decimal.New(1, -2)

// validateSubmission checks the fields the order cannot be stored without
// and that the totals add up to within a penny.
func validateSubmission(sub domain.OrderSubmission) []fieldError {
	var errs []fieldError
	add := func(field, message string) {
		errs = append(errs, fieldError{Field: field, Message: message})
	}

	if len(sub.Items) == 0 {
		add("items", "order must contain at least one item")
	}
	subtotal := decimal.Zero
	for _, item := range sub.Items {
		if item.ProductID == "" {
			add("items.product_id", "product id is required")
		}
		if item.Quantity <= 0 {
			add("items.quantity", "quantity must be positive")
		}
		subtotal = subtotal.Add(money.Times(item.UnitPrice, item.Quantity))
	}

	requireAddress := func(prefix string, a domain.Address) {
		required := []struct{ field, value string }{
			{"firstName", a.FirstName},
			{"lastName", a.LastName},
			{"addressLine1", a.AddressLine1},
			{"city", a.City},
			{"postalCode", a.PostalCode},
			{"phone", a.Phone},
		}
		for _, f := range required {
			if strings.TrimSpace(f.value) == "" {
				add(prefix+"."+f.field, "This field is required")
			}
		}
	}
	requireAddress("shipping", sub.ShippingAddress)
	if !sub.BillingSameAsShipping {
		requireAddress("billing", sub.BillingAddress)
	}

	if sub.Payment.CardNumber == "" {
		add("payment.cardNumber", "This field is required")
	}

	if len(sub.Items) > 0 && subtotal.Sub(sub.Subtotal).Abs().GreaterThan(penny) {
		add("subtotal", "subtotal does not match the items")
	}
	expected := sub.Subtotal.Sub(sub.Discount).Add(sub.Shipping).Add(sub.Tax)
	if expected.Sub(sub.Total).Abs().GreaterThan(penny) {
		add("total", "total does not match subtotal, discount, shipping and tax")
	}
	if sub.Discount.IsNegative() || sub.Discount.GreaterThan(sub.Subtotal) {
		add("discount", "discount must be between zero and the subtotal")
	}

	return errs
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order retrieved", "order_id", order.ID)
	h.writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid order status")
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.logger.Error("failed to update order status", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
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
