package policy

import (
	"fmt"
	"strings"

	"github.com/halvden/opsgate/internal/intent"
)

// Effect is the outcome a statement asserts.
type Effect string

const (
	EffectAllow           Effect = "allow"
	EffectDeny            Effect = "deny"
	EffectRequireApproval Effect = "require_approval"
)

// Valid reports whether the effect is one of the known outcomes.
func (e Effect) Valid() bool {
	switch e {
	case EffectAllow, EffectDeny, EffectRequireApproval:
		return true
	default:
		return false
	}
}

// Operator is the closed set of condition match operators.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpMatches     Operator = "matches" // regex, anchored at the start
)

// Valid reports whether the operator is a member of the closed set.
func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpIn, OpNotIn, OpStartsWith, OpEndsWith,
		OpContains, OpNotContains, OpMatches:
		return true
	default:
		return false
	}
}

// Condition is one (key, operator, value) constraint on an intent.
//
// Keys address intent fields: "region", "resource_id", "service",
// "resource_type", "tag:<name>" (tag-type filters), and "filter:<type>".
type Condition struct {
	Key      string   `json:"key"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value"`
}

// NewCondition builds a condition, normalizing scalar values to one-element
// lists for the set-membership operators.
func NewCondition(key string, op Operator, value Value) Condition {
	return Condition{Key: key, Operator: op, Value: normalizeValue(op, value)}
}

func normalizeValue(op Operator, value Value) Value {
	if (op == OpIn || op == OpNotIn) && value.Kind() != ValueList {
		return ListValue(value.Text())
	}
	return value
}

func (c Condition) validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("condition key must not be empty")
	}
	if !c.Operator.Valid() {
		return fmt.Errorf("unknown condition operator %q", c.Operator)
	}
	return nil
}

// ResourcePattern matches resources by service, type, and id globs.
// An empty or "*" service/type constraint matches anything; id patterns
// support "*" and "?" wildcards, anchored at both ends.
type ResourcePattern struct {
	Service      string   `json:"service,omitempty"`
	ResourceType string   `json:"resource_type,omitempty"`
	ResourceIDs  []string `json:"resource_ids,omitempty"`
}

// MatchesAll reports whether the pattern places no constraint at all.
func (p ResourcePattern) MatchesAll() bool {
	return (p.Service == "" || p.Service == "*") &&
		(p.ResourceType == "" || p.ResourceType == "*") &&
		len(p.ResourceIDs) == 0
}

// Statement is one rule: an effect plus the operations, resources, and
// conditions it governs. A statement matches an intent when the operation is
// listed, at least one resource pattern matches, and every condition holds.
type Statement struct {
	SID         string             `json:"sid"`
	Effect      Effect             `json:"effect"`
	Operations  []intent.Operation `json:"operations"`
	Resources   []ResourcePattern  `json:"resources"`
	Conditions  []Condition        `json:"conditions,omitempty"`
	Description string             `json:"description,omitempty"`
}

// Validate rejects malformed statements eagerly so they fail at registration
// instead of silently never matching.
func (s Statement) Validate() error {
	if strings.TrimSpace(s.SID) == "" {
		return fmt.Errorf("statement sid must not be empty")
	}
	if !s.Effect.Valid() {
		return fmt.Errorf("statement %q: unknown effect %q", s.SID, s.Effect)
	}
	if len(s.Operations) == 0 {
		return fmt.Errorf("statement %q: operations must not be empty", s.SID)
	}
	for _, op := range s.Operations {
		if !op.Valid() {
			return fmt.Errorf("statement %q: unknown operation %q", s.SID, op)
		}
	}
	if len(s.Resources) == 0 {
		return fmt.Errorf("statement %q: resources must not be empty", s.SID)
	}
	for _, cond := range s.Conditions {
		if err := cond.validate(); err != nil {
			return fmt.Errorf("statement %q: %w", s.SID, err)
		}
	}
	return nil
}

// Policy is a named, versioned, ordered collection of statements.
type Policy struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Description string      `json:"description,omitempty"`
	Statements  []Statement `json:"statements"`
}

// AddStatement appends a statement to the policy.
func (p *Policy) AddStatement(s Statement) {
	p.Statements = append(p.Statements, s)
}

// Validate checks the policy name and every statement.
func (p Policy) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("policy name must not be empty")
	}
	for _, s := range p.Statements {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("policy %q: %w", p.Name, err)
		}
	}
	return nil
}
