// Package policy evaluates role-based access rules for the authenticated
// surface using OPA Rego.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Actions guarded by the access policy.
const (
	ActionActivityRead = "activity.read"
	ActionDevicePurge  = "device.purge"
)

// accessPolicy is the built-in access policy: admins may do anything;
// every authenticated role may read its own surface.
const accessPolicy = `package authgate.access

default allow = false

allow if {
	input.role == "admin"
}

allow if {
	input.action == "activity.read"
	input.role != ""
}

allow if {
	input.action == "me.read"
	input.role != ""
}
`

// Evaluator answers allow/deny questions for (role, action) pairs. The
// policy is compiled once at construction; evaluation is per call.
type Evaluator struct {
	query rego.PreparedEvalQuery
}

// NewEvaluator compiles the built-in access policy. A compile failure is a
// startup error.
func NewEvaluator(ctx context.Context) (*Evaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"access.rego": accessPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile access policy: %w", err)
	}
	query, err := rego.New(
		rego.Query("data.authgate.access.allow"),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare access policy: %w", err)
	}
	return &Evaluator{query: query}, nil
}

// Allow reports whether role may perform action.
func (e *Evaluator) Allow(ctx context.Context, role, action string) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"role":   role,
		"action": action,
	}))
	if err != nil {
		return false, fmt.Errorf("eval access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}
