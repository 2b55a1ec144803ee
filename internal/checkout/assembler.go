// Package checkout validates a checkout draft against the current cart and
// submits the resulting order to the order API.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/joao-fontenele/pawshop-checkout/internal/cart"
	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
)

type State string

const (
	StateCollecting State = "collecting"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, submission domain.OrderSubmission) (domain.Order, error)
}

// Assembler runs checkout attempts for one cart. Only one submission may be
// in flight at a time.
type Assembler struct {
	store  *cart.Store
	orders OrderCreator
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	draft       *Draft
	fieldErrors FieldErrors
	lastErr     error

	// The idempotency key is reused across retries of the same cart contents
	// so a retried submission cannot create a second order.
	idempotencyKey string
	keyVersion     uint64
}

func NewAssembler(store *cart.Store, orders OrderCreator, logger *slog.Logger) *Assembler {
	return &Assembler{
		store:  store,
		orders: orders,
		logger: logger,
		state:  StateCollecting,
	}
}

// Submit validates d and, when valid, sends the order. On success the cart and
// the draft are cleared. On any failure both are kept so the customer can
// correct and resubmit.
func (a *Assembler) Submit(ctx context.Context, d Draft) (domain.Order, error) {
	a.mu.Lock()
	if a.state == StateSubmitting {
		a.mu.Unlock()
		return domain.Order{}, ErrSubmissionInFlight
	}

	a.draft = &d
	a.fieldErrors = nil
	a.lastErr = nil

	snap := a.store.Snapshot()
	if snap.IsEmpty() {
		a.state = StateCollecting
		a.lastErr = ErrCartEmpty
		a.mu.Unlock()
		return domain.Order{}, ErrCartEmpty
	}

	a.state = StateValidating
	if errs := Validate(d); len(errs) > 0 {
		a.state = StateCollecting
		a.fieldErrors = errs
		a.mu.Unlock()
		return domain.Order{}, &ValidationError{Fields: errs}
	}

	if a.idempotencyKey == "" || a.keyVersion != snap.Version {
		a.idempotencyKey = uuid.NewString()
		a.keyVersion = snap.Version
	}
	submission := Assemble(snap, d, a.idempotencyKey)
	a.state = StateSubmitting
	a.mu.Unlock()

	order, err := a.orders.CreateOrder(ctx, submission)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.state = StateFailed
		submitErr := &SubmitError{Err: err}
		a.lastErr = submitErr
		a.fieldErrors = submitErr.Fields()
		a.logger.Error("order submission failed", "error", err, "idempotency_key", submission.IdempotencyKey)
		return domain.Order{}, submitErr
	}

	if ctx.Err() != nil {
		a.state = StateCollecting
		a.lastErr = ErrSubmissionAbandoned
		a.logger.Warn("order created after caller went away, cart kept", "order_id", order.ID)
		return order, fmt.Errorf("%w: %w", ErrSubmissionAbandoned, ctx.Err())
	}

	if _, cleared := a.store.ClearIfVersion(snap.Version); !cleared {
		a.logger.Warn("cart changed during submission, clearing anyway", "order_id", order.ID)
		a.store.Clear()
	}

	a.state = StateSucceeded
	a.draft = nil
	a.idempotencyKey = ""
	a.keyVersion = 0

	a.logger.Info("order submitted", "order_id", order.ID, "items", len(submission.Items), "total", submission.Total.StringFixed(2))
	return order, nil
}

// Reset discards the draft, e.g. when the customer leaves the checkout page.
// It has no effect while a submission is in flight.
func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateSubmitting {
		return
	}
	a.state = StateCollecting
	a.draft = nil
	a.fieldErrors = nil
	a.lastErr = nil
	a.idempotencyKey = ""
	a.keyVersion = 0
}

func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Draft returns the retained draft, if any, so a form can be re-rendered
// after a failed attempt.
func (a *Assembler) Draft() (Draft, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.draft == nil {
		return Draft{}, false
	}
	return *a.draft, true
}

func (a *Assembler) FieldErrors() FieldErrors {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fieldErrors
}

func (a *Assembler) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}
