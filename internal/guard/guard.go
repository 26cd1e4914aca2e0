// internal/guard/guard.go
package guard

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"
)

// Guard evaluates an optional rego policy over settings writes before they
// reach a panel. With no policy configured every write is allowed.
//
// The policy module must define `data.panelsync.allow`; input is
// {"server_id":..., "actor":..., "category":..., "key":..., "value":...}.
type Guard struct {
	log    *zap.SugaredLogger
	module string
}

func New(log *zap.SugaredLogger, policyFile string) (*Guard, error) {
	g := &Guard{log: log}
	if policyFile == "" {
		return g, nil
	}
	b, err := os.ReadFile(policyFile)
	if err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}
	g.module = string(b)
	// Compile once up front so a broken policy fails at startup, not per write.
	if _, err := rego.New(
		rego.Query("data.panelsync.allow"),
		rego.Module("update_policy.rego", g.module),
	).PrepareForEval(context.Background()); err != nil {
		return nil, fmt.Errorf("update policy compile: %w", err)
	}
	log.Infow("update policy loaded", "file", policyFile)
	return g, nil
}

// NewFromModule builds a guard from an inline module (tests).
func NewFromModule(log *zap.SugaredLogger, module string) *Guard {
	return &Guard{log: log, module: module}
}

// Allow evaluates the policy for one write. Evaluation errors deny the write:
// a broken policy must fail closed.
func (g *Guard) Allow(ctx context.Context, input map[string]any) (bool, error) {
	if g.module == "" {
		return true, nil
	}
	r := rego.New(
		rego.Query("data.panelsync.allow"),
		rego.Module("update_policy.rego", g.module),
		rego.Input(input),
	)
	rs, err := r.Eval(ctx)
	if err != nil {
		g.log.Errorw("update policy eval failed", "err", err)
		return false, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := rs[0].Expressions[0].Value.(bool)
	return allowed, nil
}
