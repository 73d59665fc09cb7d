package policy

import (
	"fmt"

	"github.com/halvden/opsgate/internal/intent"
)

// Builder constructs policies fluently. It is a convenience over the plain
// Policy/Statement types; Build validates the result the same way AddPolicy
// does.
type Builder struct {
	policy  Policy
	current *Statement
}

// NewBuilder starts a policy with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{policy: Policy{Name: name, Version: "1.0"}}
}

// WithDescription sets the policy description.
func (b *Builder) WithDescription(description string) *Builder {
	b.policy.Description = description
	return b
}

// Statement starts a new statement. Any statement in progress is finished
// first.
func (b *Builder) Statement(sid string) *Builder {
	b.EndStatement()
	b.current = &Statement{SID: sid, Effect: EffectAllow}
	return b
}

// Effect sets the effect of the current statement.
func (b *Builder) Effect(effect Effect) *Builder {
	if b.current != nil {
		b.current.Effect = effect
	}
	return b
}

// Allow sets the current statement's effect to allow.
func (b *Builder) Allow() *Builder { return b.Effect(EffectAllow) }

// Deny sets the current statement's effect to deny.
func (b *Builder) Deny() *Builder { return b.Effect(EffectDeny) }

// RequireApproval sets the current statement's effect to require_approval.
func (b *Builder) RequireApproval() *Builder { return b.Effect(EffectRequireApproval) }

// Operations appends operations to the current statement.
func (b *Builder) Operations(ops ...intent.Operation) *Builder {
	if b.current != nil {
		b.current.Operations = append(b.current.Operations, ops...)
	}
	return b
}

// AllOperations applies the current statement to every operation.
func (b *Builder) AllOperations() *Builder {
	return b.Operations(intent.Operations()...)
}

// ReadOperations applies the current statement to read operations.
func (b *Builder) ReadOperations() *Builder { return b.Operations(intent.OperationRead) }

// WriteOperations applies the current statement to write operations.
func (b *Builder) WriteOperations() *Builder { return b.Operations(intent.OperationWrite) }

// DeleteOperations applies the current statement to delete operations.
func (b *Builder) DeleteOperations() *Builder { return b.Operations(intent.OperationDelete) }

// Resource appends a resource pattern to the current statement.
func (b *Builder) Resource(pattern ResourcePattern) *Builder {
	if b.current != nil {
		b.current.Resources = append(b.current.Resources, pattern)
	}
	return b
}

// AllResources applies the current statement to every resource.
func (b *Builder) AllResources() *Builder {
	return b.Resource(ResourcePattern{Service: "*"})
}

// Service applies the current statement to all resources of one service.
func (b *Builder) Service(service string) *Builder {
	return b.Resource(ResourcePattern{Service: service, ResourceType: "*"})
}

// Condition appends a condition to the current statement.
func (b *Builder) Condition(key string, op Operator, value Value) *Builder {
	if b.current != nil {
		b.current.Conditions = append(b.current.Conditions, NewCondition(key, op, value))
	}
	return b
}

// WhenTag adds a tag-based condition.
func (b *Builder) WhenTag(tag string, op Operator, value Value) *Builder {
	return b.Condition("tag:"+tag, op, value)
}

// WhenRegion adds a region-based condition.
func (b *Builder) WhenRegion(op Operator, value Value) *Builder {
	return b.Condition("region", op, value)
}

// WhenResourceID adds a resource-id condition.
func (b *Builder) WhenResourceID(op Operator, value Value) *Builder {
	return b.Condition("resource_id", op, value)
}

// Description sets the current statement's description.
func (b *Builder) Description(desc string) *Builder {
	if b.current != nil {
		b.current.Description = desc
	}
	return b
}

// EndStatement finishes the current statement and adds it to the policy.
func (b *Builder) EndStatement() *Builder {
	if b.current != nil {
		b.policy.AddStatement(*b.current)
		b.current = nil
	}
	return b
}

// Build finishes any pending statement, validates, and returns the policy.
func (b *Builder) Build() (Policy, error) {
	b.EndStatement()
	if err := b.policy.Validate(); err != nil {
		return Policy{}, err
	}
	return b.policy, nil
}

// MustBuild is Build for statically known policies such as templates.
func (b *Builder) MustBuild() Policy {
	p, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("policy builder: %v", err))
	}
	return p
}
