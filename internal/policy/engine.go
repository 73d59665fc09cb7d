package policy

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/halvden/opsgate/internal/intent"
)

// EvaluationResult is the resolved outcome of evaluating one intent against
// every registered policy.
type EvaluationResult struct {
	Effect           Effect
	Matched          []Statement
	Reasoning        string
	RequiresApproval bool
}

// Allowed reports whether the operation is allowed outright.
func (r EvaluationResult) Allowed() bool { return r.Effect == EffectAllow }

// Denied reports whether the operation is denied.
func (r EvaluationResult) Denied() bool { return r.Effect == EffectDeny }

// Engine evaluates intents against an ordered set of policies.
//
// Evaluation is pure and safe for concurrent use; AddPolicy and RemovePolicy
// are writes guarded by a read-write lock.
type Engine struct {
	mu       sync.RWMutex
	policies []Policy
}

// NewEngine builds an engine from the given policies, validating each one.
// An engine with no policies allows everything.
func NewEngine(policies ...Policy) (*Engine, error) {
	e := &Engine{}
	for _, p := range policies {
		if err := e.AddPolicy(p); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// AddPolicy validates and appends a policy. Malformed policies are rejected
// here rather than silently never matching.
func (e *Engine) AddPolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("add policy: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = append(e.policies, p)
	slog.Debug("policy added", "policy", p.Name, "statements", len(p.Statements))
	return nil
}

// RemovePolicy removes every policy with the given name and reports whether
// anything was removed.
func (e *Engine) RemovePolicy(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.policies[:0]
	removed := false
	for _, p := range e.policies {
		if p.Name == name {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	e.policies = kept
	if removed {
		slog.Debug("policy removed", "policy", name)
	}
	return removed
}

// Policies returns a snapshot of the registered policies.
func (e *Engine) Policies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Policy(nil), e.policies...)
}

// Evaluate resolves one intent against all registered policies.
//
// All matching statements are collected and resolved with fixed precedence:
// any DENY wins; an ALLOW does not waive a REQUIRE_APPROVAL that also
// matched; with no match at all the engine fails closed and denies.
func (e *Engine) Evaluate(in *intent.Intent) EvaluationResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.policies) == 0 {
		return EvaluationResult{
			Effect:    EffectAllow,
			Reasoning: "no policies configured - allowing by default",
		}
	}

	var denies, allows, approvals []Statement
	for _, p := range e.policies {
		for _, s := range p.Statements {
			if !statementMatches(s, in) {
				continue
			}
			switch s.Effect {
			case EffectDeny:
				denies = append(denies, s)
			case EffectAllow:
				allows = append(allows, s)
			case EffectRequireApproval:
				approvals = append(approvals, s)
			}
		}
	}

	if len(denies) > 0 {
		return EvaluationResult{
			Effect:    EffectDeny,
			Matched:   denies,
			Reasoning: buildReasoning(denies, "denies this operation", "denied by"),
		}
	}
	if len(allows) > 0 {
		if len(approvals) > 0 {
			// An explicit allow does not waive an approval requirement.
			return EvaluationResult{
				Effect:           EffectRequireApproval,
				Matched:          approvals,
				Reasoning:        buildReasoning(approvals, "requires approval for this operation", "requires approval per"),
				RequiresApproval: true,
			}
		}
		return EvaluationResult{
			Effect:    EffectAllow,
			Matched:   allows,
			Reasoning: buildReasoning(allows, "allows this operation", "allowed by"),
		}
	}
	if len(approvals) > 0 {
		return EvaluationResult{
			Effect:           EffectRequireApproval,
			Matched:          approvals,
			Reasoning:        buildReasoning(approvals, "requires approval for this operation", "requires approval per"),
			RequiresApproval: true,
		}
	}

	// Fail closed: a non-empty policy set with no match denies.
	return EvaluationResult{
		Effect:    EffectDeny,
		Reasoning: "no matching policy statements - denying by default",
	}
}

func buildReasoning(statements []Statement, singleVerb, multiVerb string) string {
	if len(statements) == 1 {
		s := statements[0]
		reason := fmt.Sprintf("statement %q %s", s.SID, singleVerb)
		if s.Description != "" {
			reason += ": " + s.Description
		}
		return reason
	}

	sids := make([]string, 0, len(statements))
	for _, s := range statements {
		sids = append(sids, s.SID)
	}
	return fmt.Sprintf("operation %s statements %s", multiVerb, strings.Join(sids, ", "))
}
