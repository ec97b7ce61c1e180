// Package payment adapts the external payment gateway. The subsystem only
// ever asks it one question: is this payment captured, and for how much.
package payment

import "context"

// Status values reported by the gateway.
const (
	StatusCaptured = "captured"
	StatusPending  = "pending"
	StatusFailed   = "failed"
)

// Payment is the gateway's view of a payment.
type Payment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// Captured reports whether the payment has been captured.
func (p *Payment) Captured() bool {
	return p != nil && p.Status == StatusCaptured
}

// Verifier fetches payment state from the gateway.
type Verifier interface {
	// Fetch returns the payment for paymentID, or nil if the gateway does
	// not know it. Returns an error only for transport or gateway failures.
	Fetch(ctx context.Context, paymentID string) (*Payment, error)
}
