package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/gaini88088/expert-pancake/internal/session/domain"
)

// Default Rego policy implementing the documented classification rules:
// verified device -> trusted, first device ever -> trusted, otherwise new,
// demoted to suspicious when the login is farther than the threshold from
// every previously trusted location.
const defaultRegoPolicy = `package pancake.session_trust

default state = "new"
default verification_required = false

state = "trusted" if {
	input.device.has_verified_record
}

state = "trusted" if {
	not input.device.has_verified_record
	input.user.first_ever
}

state = "suspicious" if {
	not input.device.has_verified_record
	not input.user.first_ever
	input.geo.known
	input.geo.threshold_km > 0
	input.geo.min_trusted_distance_km > input.geo.threshold_km
}

verification_required if {
	state == "suspicious"
}
`

// OPAEvaluator classifies sessions by evaluating a Rego policy in process.
type OPAEvaluator struct {
	policy string
	logger *slog.Logger
}

// NewOPAEvaluator returns an evaluator running the embedded default policy.
func NewOPAEvaluator(logger *slog.Logger) *OPAEvaluator {
	return NewOPAEvaluatorWithPolicy(defaultRegoPolicy, logger)
}

// NewOPAEvaluatorWithPolicy returns an evaluator running the given Rego source
// instead of the embedded default. The source must define
// pancake.session_trust.state and .verification_required.
func NewOPAEvaluatorWithPolicy(policy string, logger *slog.Logger) *OPAEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &OPAEvaluator{policy: policy, logger: logger.With("component", "trust_engine")}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the policy.
// Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := e.compile()
	if err != nil {
		return err
	}
	q := rego.New(
		rego.Query("data.pancake.session_trust.state"),
		rego.Compiler(compiler),
		rego.Input(buildInput(ClassifyInput{})),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval trust policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("trust policy query returned no result")
	}
	return nil
}

// Classify evaluates the policy for the given facts. On evaluation failure the
// session falls back to "new" with verification required, never to trusted.
func (e *OPAEvaluator) Classify(ctx context.Context, input ClassifyInput) (Classification, error) {
	compiler, err := e.compile()
	if err != nil {
		return Classification{}, err
	}

	in := buildInput(input)
	out := Classification{State: domain.TrustStateNew}

	stateQuery := rego.New(
		rego.Query("data.pancake.session_trust.state"),
		rego.Compiler(compiler),
		rego.Input(in),
	)
	stateRS, err := stateQuery.Eval(ctx)
	if err != nil || len(stateRS) == 0 || len(stateRS[0].Expressions) == 0 {
		e.logger.Warn("trust policy evaluation failed, classifying as new", "error", err)
		return Classification{State: domain.TrustStateNew, VerificationRequired: true}, nil
	}
	if v, ok := stateRS[0].Expressions[0].Value.(string); ok {
		state := domain.TrustState(v)
		if state.Valid() {
			out.State = state
		}
	}

	verifyQuery := rego.New(
		rego.Query("data.pancake.session_trust.verification_required"),
		rego.Compiler(compiler),
		rego.Input(in),
	)
	verifyRS, err := verifyQuery.Eval(ctx)
	if err == nil && len(verifyRS) > 0 && len(verifyRS[0].Expressions) > 0 {
		if v, ok := verifyRS[0].Expressions[0].Value.(bool); ok {
			out.VerificationRequired = v
		}
	}

	return out, nil
}

func (e *OPAEvaluator) compile() (*ast.Compiler, error) {
	modules := map[string]string{"trust_policy.rego": e.policy}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile trust policy: %w", err)
	}
	return compiler, nil
}

func buildInput(in ClassifyInput) map[string]interface{} {
	return map[string]interface{}{
		"session": map[string]interface{}{
			"ip": in.IPAddress,
		},
		"device": map[string]interface{}{
			"has_verified_record": in.HasVerifiedRecord,
			"known":               in.KnownDevice,
		},
		"user": map[string]interface{}{
			"first_ever": in.FirstEver,
		},
		"geo": map[string]interface{}{
			"known":                   in.GeoKnown,
			"min_trusted_distance_km": in.MinTrustedDistanceKm,
			"threshold_km":            in.GeoThresholdKm,
		},
	}
}
