package gate

import (
	"github.com/halvden/opsgate/internal/intent"
	"github.com/halvden/opsgate/internal/policy"
)

// Decision is the end-to-end authorization outcome for one intent.
type Decision string

const (
	// DecisionProceed means the intent is clear and safe to execute.
	DecisionProceed Decision = "proceed"
	// DecisionClarify means more information is needed from the user.
	DecisionClarify Decision = "clarify"
	// DecisionReject means the request cannot or should not execute.
	DecisionReject Decision = "reject"
	// DecisionConfirm means explicit confirmation is required first.
	DecisionConfirm Decision = "confirm"
)

// CapabilityTier is the coarse capability category approved for the
// downstream command generator. It bounds which operations the generator may
// emit.
type CapabilityTier string

const (
	TierReadOnly    CapabilityTier = "read_only"
	TierWrite       CapabilityTier = "write"
	TierDestructive CapabilityTier = "destructive"
)

// tierFor maps the intent operation and resolved policy effect to the
// capability tier passed through to the downstream consumer.
func tierFor(op intent.Operation, effect policy.Effect) CapabilityTier {
	if effect == policy.EffectDeny {
		return TierReadOnly
	}
	switch op {
	case intent.OperationDelete:
		return TierDestructive
	case intent.OperationWrite:
		return TierWrite
	default:
		return TierReadOnly
	}
}

// Result is the gate's decision plus the material a caller needs to act on
// it: questions to ask, warnings to surface, confirmations to collect.
type Result struct {
	Decision              Decision       `json:"decision"`
	Intent                *intent.Intent `json:"intent"`
	Reasoning             string         `json:"reasoning"`
	ClarifyingQuestions   []string       `json:"clarifying_questions,omitempty"`
	Warnings              []string       `json:"warnings,omitempty"`
	RequiredConfirmations []string       `json:"required_confirmations,omitempty"`

	// Tier is the capability category the downstream consumer operates
	// under when the decision is proceed.
	Tier CapabilityTier `json:"tier,omitempty"`
}
