package gate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/halvden/opsgate/internal/intent"
	"github.com/halvden/opsgate/internal/policy"
)

// Config holds the gate's validation thresholds and safety settings.
// DefaultConfig returns the stock values; callers inject their own policy
// set through New rather than relying on any global default.
type Config struct {
	// MinConfidenceProceed is the threshold for read and analyze operations.
	MinConfidenceProceed intent.Confidence
	// MinConfidenceWrite is the threshold for write operations. Deletes
	// always require high confidence.
	MinConfidenceWrite intent.Confidence

	// RequireConfirmationForDelete forces a confirmation on every delete.
	RequireConfirmationForDelete bool

	// MaxResourceLimit caps the requested result limit for mutating
	// operations.
	MaxResourceLimit int

	// ProtectedPatterns are substrings that mark a resource id or tag value
	// as protected, forcing confirmation on mutating operations.
	ProtectedPatterns []string

	// HighRiskActions lists action verbs that draw a warning, per operation.
	HighRiskActions map[intent.Operation][]string

	// EnablePolicies toggles policy engine consultation.
	EnablePolicies bool
}

// DefaultConfig returns the stock gate configuration.
func DefaultConfig() Config {
	return Config{
		MinConfidenceProceed:         intent.ConfidenceMedium,
		MinConfidenceWrite:           intent.ConfidenceHigh,
		RequireConfirmationForDelete: true,
		MaxResourceLimit:             100,
		ProtectedPatterns:            []string{"prod", "production", "master", "main"},
		HighRiskActions: map[intent.Operation][]string{
			intent.OperationDelete: {"terminate", "delete", "remove", "destroy"},
			intent.OperationWrite:  {"stop", "restart", "reboot", "modify"},
		},
		EnablePolicies: true,
	}
}

// Gate validates structured intents and decides whether execution may
// proceed. It runs basic validity checks, consults the policy engine, applies
// safety heuristics and resource constraints, and combines everything into
// one decision.
type Gate struct {
	cfg    Config
	engine *policy.Engine
}

// New builds a gate over the given policy engine. A nil engine disables
// policy consultation regardless of cfg.EnablePolicies.
func New(cfg Config, engine *policy.Engine) *Gate {
	if cfg.MinConfidenceProceed == "" {
		cfg.MinConfidenceProceed = intent.ConfidenceMedium
	}
	if cfg.MinConfidenceWrite == "" {
		cfg.MinConfidenceWrite = intent.ConfidenceHigh
	}
	if cfg.MaxResourceLimit <= 0 {
		cfg.MaxResourceLimit = 100
	}
	return &Gate{cfg: cfg, engine: engine}
}

// AddPolicy registers a policy with the underlying engine.
func (g *Gate) AddPolicy(p policy.Policy) error {
	if g.engine == nil {
		return fmt.Errorf("policy engine is disabled")
	}
	return g.engine.AddPolicy(p)
}

// RemovePolicy removes a policy by name from the underlying engine.
func (g *Gate) RemovePolicy(name string) bool {
	if g.engine == nil {
		return false
	}
	return g.engine.RemovePolicy(name)
}

// Evaluate runs the full gate pipeline over one intent. It never panics: an
// internal fault is converted into a reject with diagnostic reasoning so one
// bad request cannot take down evaluation of others.
func (g *Gate) Evaluate(in *intent.Intent) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("gate evaluation fault", "panic", r)
			result = Result{
				Decision:  DecisionReject,
				Intent:    in,
				Reasoning: fmt.Sprintf("internal evaluation fault: %v", r),
			}
		}
	}()

	slog.Info("evaluating intent", "operation", in.Operation, "service", in.PrimaryService)

	// Basic validity checks, each blocking on failure.
	basicChecks := []func(*intent.Intent) *Result{
		g.checkErrorIntent,
		g.checkConfidence,
		g.checkCompleteness,
		g.checkAmbiguities,
	}
	for _, check := range basicChecks {
		if blocked := check(in); blocked != nil {
			slog.Info("gate decision", "decision", blocked.Decision, "reasoning", blocked.Reasoning)
			return *blocked
		}
	}

	var policyResult *policy.EvaluationResult
	if g.engine != nil && g.cfg.EnablePolicies {
		evaluated := g.engine.Evaluate(in)
		policyResult = &evaluated
		slog.Info("policy evaluation", "effect", evaluated.Effect)

		if evaluated.Effect == policy.EffectDeny {
			return Result{
				Decision:  DecisionReject,
				Intent:    in,
				Reasoning: "policy denied: " + evaluated.Reasoning,
			}
		}
	}

	confirmations, warnings := g.checkSafety(in)

	if blocked := g.checkResourceConstraints(in); blocked != nil {
		slog.Info("gate decision", "decision", blocked.Decision, "reasoning", blocked.Reasoning)
		return *blocked
	}

	return g.combine(in, confirmations, warnings, policyResult)
}

func (g *Gate) checkErrorIntent(in *intent.Intent) *Result {
	if !in.IsError() {
		return nil
	}
	questions := in.ClarifyingQuestions
	if len(questions) == 0 {
		questions = []string{
			"I couldn't understand your query. Could you rephrase it?",
			"Try something like: 'list my EC2 instances' or 'show S3 buckets'",
		}
	}
	return &Result{
		Decision:            DecisionReject,
		Intent:              in,
		Reasoning:           "intent extraction failed",
		ClarifyingQuestions: questions,
	}
}

func (g *Gate) checkConfidence(in *intent.Intent) *Result {
	var required intent.Confidence
	switch in.Operation {
	case intent.OperationDelete:
		required = intent.ConfidenceHigh
	case intent.OperationWrite:
		required = g.cfg.MinConfidenceWrite
	default:
		required = g.cfg.MinConfidenceProceed
	}

	if in.Confidence.AtLeast(required) {
		return nil
	}
	return &Result{
		Decision: DecisionClarify,
		Intent:   in,
		Reasoning: fmt.Sprintf("confidence %s is below required %s for %s operations",
			in.Confidence, required, in.Operation),
		ClarifyingQuestions: []string{
			fmt.Sprintf("I'm not completely sure I understood correctly. You want to %s %s resources?",
				in.Action, in.PrimaryService),
			"Could you provide more specific details about what you want to do?",
		},
	}
}

func (g *Gate) checkCompleteness(in *intent.Intent) *Result {
	var questions []string

	if !in.HasService() {
		questions = append(questions, "Which service would you like to work with? (e.g., EC2, S3, RDS)")
	}
	if in.Operation.IsMutating() && strings.TrimSpace(in.Action) == "" {
		questions = append(questions, "What specific action would you like to perform? (e.g., stop, terminate, update)")
	}
	if len(in.PrimaryResource.Filters) > 0 && in.PrimaryResource.ResourceType == "" {
		questions = append(questions, fmt.Sprintf("What type of %s resource are you looking for?", in.PrimaryService))
	}

	if len(questions) == 0 {
		return nil
	}
	return &Result{
		Decision:            DecisionClarify,
		Intent:              in,
		Reasoning:           "intent is missing critical information",
		ClarifyingQuestions: questions,
	}
}

func (g *Gate) checkAmbiguities(in *intent.Intent) *Result {
	if len(in.Ambiguities) == 0 {
		return nil
	}

	questions := make([]string, 0, len(in.Ambiguities))
	for _, ambiguity := range in.Ambiguities {
		lower := strings.ToLower(ambiguity)
		switch {
		case strings.Contains(lower, "region"):
			questions = append(questions, "Which region should I use? (e.g., us-east-1, eu-west-1)")
		case strings.Contains(lower, "resource"):
			questions = append(questions, fmt.Sprintf("Could you specify which %s resource?", in.PrimaryService))
		default:
			questions = append(questions, "Could you clarify: "+ambiguity)
		}
	}

	// Ambiguity blocks mutating operations only; reads and analysis go on.
	if in.Operation.IsMutating() {
		return &Result{
			Decision:            DecisionClarify,
			Intent:              in,
			Reasoning:           fmt.Sprintf("ambiguities detected for %s operation require clarification", in.Operation),
			ClarifyingQuestions: questions,
		}
	}
	return nil
}

func (g *Gate) checkSafety(in *intent.Intent) (confirmations, warnings []string) {
	if in.Operation == intent.OperationDelete && g.cfg.RequireConfirmationForDelete {
		confirmations = append(confirmations, fmt.Sprintf(
			"You're about to DELETE %s resources. This action cannot be undone. Type 'confirm' to proceed.",
			in.PrimaryService))
	}

	if in.Operation.IsMutating() {
		if protected := g.protectedMatches(in); len(protected) > 0 {
			confirmations = append(confirmations, fmt.Sprintf(
				"This operation targets protected resources (matching: %s). Please confirm this is intentional.",
				strings.Join(protected, ", ")))
		}
		if len(in.PrimaryResource.ResourceIDs) == 0 && len(in.PrimaryResource.Filters) == 0 {
			confirmations = append(confirmations, fmt.Sprintf(
				"This will affect ALL %s resources. Are you sure you want to proceed without filters?",
				in.PrimaryService))
		}
	}

	if action := strings.ToLower(strings.TrimSpace(in.Action)); action != "" {
		for _, risky := range g.cfg.HighRiskActions[in.Operation] {
			if action == risky {
				warnings = append(warnings, "High-risk action detected: "+in.Action)
				break
			}
		}
	}

	return confirmations, warnings
}

func (g *Gate) protectedMatches(in *intent.Intent) []string {
	seen := make(map[string]struct{})
	var matched []string
	record := func(pattern string) {
		if _, ok := seen[pattern]; ok {
			return
		}
		seen[pattern] = struct{}{}
		matched = append(matched, pattern)
	}

	for _, id := range in.PrimaryResource.ResourceIDs {
		for _, pattern := range g.cfg.ProtectedPatterns {
			if strings.Contains(strings.ToLower(id), strings.ToLower(pattern)) {
				record(pattern)
			}
		}
	}
	for _, f := range in.PrimaryResource.Filters {
		if f.Type != "name" && f.Type != "tag" {
			continue
		}
		for _, pattern := range g.cfg.ProtectedPatterns {
			if strings.Contains(strings.ToLower(f.Value), strings.ToLower(pattern)) {
				record(pattern)
			}
		}
	}
	return matched
}

func (g *Gate) checkResourceConstraints(in *intent.Intent) *Result {
	if in.Limit > g.cfg.MaxResourceLimit && in.Operation.IsMutating() {
		return &Result{
			Decision: DecisionReject,
			Intent:   in,
			Reasoning: fmt.Sprintf("requested limit (%d) exceeds maximum allowed (%d) for %s operations",
				in.Limit, g.cfg.MaxResourceLimit, in.Operation),
			ClarifyingQuestions: []string{
				fmt.Sprintf("The maximum allowed limit for %s operations is %d.", in.Operation, g.cfg.MaxResourceLimit),
				"Would you like to proceed with a smaller batch or add more specific filters?",
			},
		}
	}

	if len(in.Regions) == 0 && in.Operation.IsMutating() {
		return &Result{
			Decision:  DecisionClarify,
			Intent:    in,
			Reasoning: "region must be specified for write/delete operations",
			ClarifyingQuestions: []string{
				"Which region should I target for this operation?",
				"For safety, write and delete operations require explicit region specification.",
			},
		}
	}

	return nil
}

func (g *Gate) combine(in *intent.Intent, confirmations, warnings []string, policyResult *policy.EvaluationResult) Result {
	effect := policy.EffectAllow
	if policyResult != nil {
		effect = policyResult.Effect
	}

	// Deny short-circuited earlier; checked again so a future reordering of
	// the pipeline cannot let one through.
	if effect == policy.EffectDeny {
		return Result{
			Decision:  DecisionReject,
			Intent:    in,
			Reasoning: "policy denied: " + policyResult.Reasoning,
			Warnings:  warnings,
		}
	}

	if effect == policy.EffectRequireApproval {
		confirmations = append(confirmations, "Policy requires approval: "+policyResult.Reasoning)
	}

	tier := tierFor(in.Operation, effect)

	if len(confirmations) > 0 {
		return Result{
			Decision:              DecisionConfirm,
			Intent:                in,
			Reasoning:             "operation requires explicit confirmation",
			RequiredConfirmations: confirmations,
			Warnings:              warnings,
			Tier:                  tier,
		}
	}

	return Result{
		Decision:  DecisionProceed,
		Intent:    in,
		Reasoning: "all validation checks passed",
		Warnings:  warnings,
		Tier:      tier,
	}
}
