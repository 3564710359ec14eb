package rbac

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// defaultRegoPolicy mirrors the static role check: admin passes everywhere,
// everyone else needs their role in the route's required list.
const defaultRegoPolicy = `package insurance.authz

default allow := false

allow if input.role == "admin"

allow if input.role == input.required[_]
`

// PolicySource supplies the Rego policy text, typically from the database so
// operators can tighten rules without a redeploy. *procedure.Client
// satisfies it.
type PolicySource interface {
	AuthorizationPolicy(ctx context.Context) (string, error)
}

// OPAChecker evaluates authorization inputs against a prepared Rego query.
type OPAChecker struct {
	query rego.PreparedEvalQuery
}

// NewOPAChecker compiles policy (Rego source for package insurance.authz)
// into a checker. An empty policy compiles the built-in default.
func NewOPAChecker(ctx context.Context, policy string) (*OPAChecker, error) {
	if policy == "" {
		policy = defaultRegoPolicy
	}
	query, err := rego.New(
		rego.Query("data.insurance.authz.allow"),
		rego.Module("authz.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile authorization policy: %w", err)
	}
	return &OPAChecker{query: query}, nil
}

// NewOPACheckerFromSource loads the policy text from source and compiles it.
// A source failure falls back to the built-in default policy.
func NewOPACheckerFromSource(ctx context.Context, source PolicySource) (*OPAChecker, error) {
	policy, err := source.AuthorizationPolicy(ctx)
	if err != nil {
		policy = ""
	}
	return NewOPAChecker(ctx, policy)
}

func (c *OPAChecker) Allowed(ctx context.Context, input map[string]any) (bool, error) {
	results, err := c.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("evaluate authorization policy: %w", err)
	}
	return results.Allowed(), nil
}
