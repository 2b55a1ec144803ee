// Package storefront serves the cart and checkout engine to the browser. Each
// visitor gets an in-memory session holding one cart.
package storefront

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/pawshop-checkout/internal/cart"
	"github.com/joao-fontenele/pawshop-checkout/internal/checkout"
	"github.com/joao-fontenele/pawshop-checkout/internal/coupon"
	"github.com/joao-fontenele/pawshop-checkout/internal/pricing"
)

const SessionHeader = "X-Session-ID"

// ShopAPI is what a session needs from the remote shop API.
type ShopAPI interface {
	coupon.Validator
	checkout.OrderCreator
}

type Session struct {
	ID       string
	Cart     *cart.Store
	Coupons  *coupon.Service
	Checkout *checkout.Assembler

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Registry owns the live sessions. Sessions idle for longer than ttl are
// dropped by Sweep.
type Registry struct {
	calc   pricing.Calculator
	api    ShopAPI
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(calc pricing.Calculator, api ShopAPI, ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		calc:     calc,
		api:      api,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, starting a new one under a fresh id when id
// is empty or unknown.
func (r *Registry) Get(id string) (*Session, bool) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.touch(now)
		return s, false
	}

	s := r.newSession(uuid.New().String(), now)
	r.sessions[s.ID] = s
	return s, true
}

func (r *Registry) newSession(id string, now time.Time) *Session {
	store := cart.NewStore(r.calc)
	logger := r.logger.With("session_id", id)
	return &Session{
		ID:       id,
		Cart:     store,
		Coupons:  coupon.NewService(store, r.api, logger),
		Checkout: checkout.NewAssembler(store, r.api, logger),
		lastSeen: now,
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops idle sessions and returns how many were removed. Sessions with
// a submission in flight are kept.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.idleSince(now) < r.ttl {
			continue
		}
		if s.Checkout.State() == checkout.StateSubmitting {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("expired idle sessions", "count", n, "remaining", r.Len())
			}
		}
	}
}
