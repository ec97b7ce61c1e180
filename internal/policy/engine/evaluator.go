package engine

import "context"

// ExemptionInput describes the actor and organization a seat purchase is
// evaluated for.
type ExemptionInput struct {
	ActorID          string
	ActorRole        string
	ActorIsOwner     bool
	OrgID            string
	Plan             string
	SubscriptionStat string
}

// Evaluator decides whether a seat-capacity increase may bypass payment
// verification.
type Evaluator interface {
	// PaymentExempt evaluates the billing policy for the given input.
	// Returns true when the actor may increase seats without a verified
	// payment.
	PaymentExempt(ctx context.Context, in ExemptionInput) (bool, error)
}
