// Package payment verifies externally captured payments before the
// booking engine confirms them.
package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"github.com/iliyamo/class-booking/internal/model"
)

type intentGetter func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)

// StripeVerifier resolves a payment ref to a Stripe PaymentIntent and
// reports the amount actually received.
type StripeVerifier struct {
	get intentGetter
}

// NewStripeVerifier returns a verifier authenticated with secretKey.
func NewStripeVerifier(secretKey string) (*StripeVerifier, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	c := &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
	return &StripeVerifier{get: c.Get}, nil
}

// Verify returns the received amount of a succeeded intent. Any other
// status yields model.ErrPaymentNotCompleted.
func (v *StripeVerifier) Verify(ctx context.Context, paymentRef string) (int64, error) {
	if !strings.HasPrefix(paymentRef, "pi_") {
		return 0, model.NewValidationError("payment_ref", "not a payment intent id")
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := v.get(paymentRef, params)
	if err != nil {
		if se, ok := err.(*stripe.Error); ok && se.HTTPStatusCode == 404 {
			return 0, fmt.Errorf("%w: unknown payment %s", model.ErrPaymentNotCompleted, paymentRef)
		}
		return 0, fmt.Errorf("stripe: get payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return 0, fmt.Errorf("%w: status %s", model.ErrPaymentNotCompleted, pi.Status)
	}
	return pi.AmountReceived, nil
}

// Static is a PaymentVerifier over a fixed set of settled payments. It
// backs local runs without a provider account.
type Static struct {
	mu      sync.RWMutex
	settled map[string]int64
}

// NewStatic returns an empty Static verifier.
func NewStatic() *Static { return &Static{settled: map[string]int64{}} }

// Settle records ref as paid with amount.
func (s *Static) Settle(ref string, amount int64) {
	s.mu.Lock()
	s.settled[ref] = amount
	s.mu.Unlock()
}

func (s *Static) Verify(_ context.Context, paymentRef string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	amt, ok := s.settled[paymentRef]
	if !ok {
		return 0, fmt.Errorf("%w: unknown payment %s", model.ErrPaymentNotCompleted, paymentRef)
	}
	return amt, nil
}
