package gate

import (
	"log/slog"
	"strings"
)

var (
	confirmationPhrases = []string{"confirm", "yes", "proceed", "continue", "go ahead"}
	rejectionPhrases    = []string{"no", "cancel", "abort", "stop", "nevermind"}
)

// ProcessConfirmation advances a pending confirm decision based on the
// user's reply. Results that are not awaiting confirmation pass through
// unchanged. Confirmation phrases are checked before rejection phrases, so a
// reply containing both confirms.
func (g *Gate) ProcessConfirmation(pending Result, reply string) Result {
	if pending.Decision != DecisionConfirm {
		return pending
	}

	lower := strings.ToLower(strings.TrimSpace(reply))

	if containsAny(lower, confirmationPhrases) {
		slog.Info("user confirmed operation", "operation", pending.Intent.Operation)
		return Result{
			Decision:  DecisionProceed,
			Intent:    pending.Intent,
			Reasoning: "user explicitly confirmed the operation",
			Warnings:  pending.Warnings,
			Tier:      pending.Tier,
		}
	}
	if containsAny(lower, rejectionPhrases) {
		slog.Info("user rejected operation", "operation", pending.Intent.Operation)
		return Result{
			Decision:  DecisionReject,
			Intent:    pending.Intent,
			Reasoning: "user declined to confirm the operation",
		}
	}

	return Result{
		Decision:  DecisionConfirm,
		Intent:    pending.Intent,
		Reasoning: "confirmation response not clear",
		RequiredConfirmations: []string{
			"Please respond with 'confirm' to proceed or 'cancel' to abort.",
		},
		Warnings: pending.Warnings,
		Tier:     pending.Tier,
	}
}

func containsAny(s string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(s, phrase) {
			return true
		}
	}
	return false
}
