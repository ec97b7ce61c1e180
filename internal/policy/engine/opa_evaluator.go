package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const exemptionQuery = "data.firmdesk.billing.payment_exempt"

// Default Rego policy: platform support staff and comped organizations skip
// the payment gateway; everyone else pays.
const defaultRegoPolicy = `package firmdesk.billing

default payment_exempt = false

payment_exempt if {
	input.actor.platform_role == "support"
}

payment_exempt if {
	input.org.subscription_status == "comped"
}
`

// OPAEvaluator evaluates the billing exemption policy using OPA Rego.
type OPAEvaluator struct {
	policy string
}

// NewOPAEvaluator returns an OPA-based evaluator. policy overrides the
// default Rego module when non-empty.
func NewOPAEvaluator(policy string) *OPAEvaluator {
	if policy == "" {
		policy = defaultRegoPolicy
	}
	return &OPAEvaluator{policy: policy}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and
// evaluate the configured policy. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, ExemptionInput{})
	return err
}

// PaymentExempt evaluates the billing policy for the given input. Evaluation
// failures are returned; callers should treat them as "not exempt".
func (e *OPAEvaluator) PaymentExempt(ctx context.Context, in ExemptionInput) (bool, error) {
	return e.eval(ctx, in)
}

func (e *OPAEvaluator) eval(ctx context.Context, in ExemptionInput) (bool, error) {
	compiler, err := ast.CompileModules(map[string]string{"billing.rego": e.policy})
	if err != nil {
		return false, fmt.Errorf("compile billing policy: %w", err)
	}
	input := map[string]interface{}{
		"actor": map[string]interface{}{
			"id":            in.ActorID,
			"platform_role": in.ActorRole,
			"is_owner":      in.ActorIsOwner,
		},
		"org": map[string]interface{}{
			"id":                  in.OrgID,
			"plan":                in.Plan,
			"subscription_status": in.SubscriptionStat,
		},
	}
	q := rego.New(
		rego.Query(exemptionQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval billing policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("billing policy query returned no result")
	}
	exempt, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("billing policy returned non-boolean result")
	}
	return exempt, nil
}
