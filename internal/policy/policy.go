// Package policy decides whether a failed gateway attempt may be retried.
// Rules are govaluate expressions evaluated in priority order; the first
// matching rule wins.
package policy

import (
	"fmt"
	"sort"

	"github.com/Knetic/govaluate"
)

// Decision is the outcome of evaluating a failed attempt.
type Decision struct {
	AllowRetry bool
	// RuleID names the rule that produced the decision, empty for the default.
	RuleID string
}

// Rule is a single retry rule. Lower Priority values are evaluated first.
type Rule struct {
	ID         string
	Expression string
	Priority   int
	Decision   Decision
}

// Attempt describes the failed call being evaluated. Its fields are exposed to
// expressions as provider, kind, attempt_number, max_attempts and http_status.
type Attempt struct {
	Provider    string
	Kind        string
	Number      int
	MaxAttempts int
	HTTPStatus  int
}

func (a Attempt) parameters() map[string]interface{} {
	return map[string]interface{}{
		"provider":       a.Provider,
		"kind":           a.Kind,
		"attempt_number": float64(a.Number),
		"max_attempts":   float64(a.MaxAttempts),
		"http_status":    float64(a.HTTPStatus),
	}
}

type compiledRule struct {
	Rule
	expr *govaluate.EvaluableExpression
}

// RetryPolicyEnforcer evaluates compiled retry rules.
type RetryPolicyEnforcer struct {
	rules    []compiledRule
	fallback Decision
}

// DefaultRules retries transient failures until the budget is spent and never
// retries provider rejections or malformed requests.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "rejected_is_final", Priority: 10, Expression: "kind == 'gateway_rejected'"},
		{ID: "bad_request_is_final", Priority: 20, Expression: "kind == 'invalid_argument' || kind == 'invalid_amount'"},
		{ID: "budget_spent", Priority: 30, Expression: "attempt_number >= max_attempts"},
		{
			ID: "transient_retry", Priority: 40,
			Expression: "kind == 'gateway_unavailable' || kind == 'upstream_unavailable'",
			Decision:   Decision{AllowRetry: true},
		},
	}
}

// NewRetryPolicyEnforcer compiles rules. Attempts matching no rule are not retried.
func NewRetryPolicyEnforcer(rules []Rule) (*RetryPolicyEnforcer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Expression == "" {
			return nil, fmt.Errorf("policy rule ID '%s' has an empty expression", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule ID '%s': %w", r.ID, err)
		}
		r.Decision.RuleID = r.ID
		compiled = append(compiled, compiledRule{Rule: r, expr: expr})
	}
	sort.SliceStable(compiled, func(i, j int) bool { return compiled[i].Priority < compiled[j].Priority })
	return &RetryPolicyEnforcer{rules: compiled}, nil
}

// MustDefault returns an enforcer over DefaultRules.
func MustDefault() *RetryPolicyEnforcer {
	e, err := NewRetryPolicyEnforcer(DefaultRules())
	if err != nil {
		panic(err)
	}
	return e
}

// Evaluate returns the decision of the first matching rule.
func (e *RetryPolicyEnforcer) Evaluate(a Attempt) (Decision, error) {
	params := a.parameters()
	for _, r := range e.rules {
		result, err := r.expr.Evaluate(params)
		if err != nil {
			return Decision{}, fmt.Errorf("evaluating rule ID '%s': %w", r.ID, err)
		}
		matched, ok := result.(bool)
		if !ok {
			return Decision{}, fmt.Errorf("rule ID '%s' returned %T, want bool", r.ID, result)
		}
		if matched {
			return r.Decision, nil
		}
	}
	return e.fallback, nil
}
