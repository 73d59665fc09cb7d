package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/halvden/opsgate/internal/audit"
	"github.com/halvden/opsgate/internal/gate"
	"github.com/halvden/opsgate/internal/intent"
	"github.com/halvden/opsgate/internal/policy"
	"github.com/halvden/opsgate/internal/runner"
	"github.com/halvden/opsgate/internal/session"
)

// stubExtractor matches query substrings against rules in order.
type stubRule struct {
	match  string
	intent *intent.Intent
}

type stubExtractor struct {
	rules []stubRule
}

func (s *stubExtractor) Extract(ctx context.Context, query string) (*intent.Intent, error) {
	for _, rule := range s.rules {
		if strings.Contains(query, rule.match) {
			copied := *rule.intent
			copied.OriginalQuery = query
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no extraction for query: %s", query)
}

type stubGenerator struct {
	command string
	tier    gate.CapabilityTier
}

func (s *stubGenerator) Generate(ctx context.Context, in *intent.Intent, tier gate.CapabilityTier) (string, error) {
	s.tier = tier
	return s.command, nil
}

func testPipeline(t *testing.T, ex *stubExtractor, gen *stubGenerator, policies ...policy.Policy) (*Pipeline, string) {
	t.Helper()
	engine, err := policy.NewEngine(policies...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.log")
	p := NewPipeline(
		ex,
		gate.NewTracker(gate.New(gate.DefaultConfig(), engine)),
		gen,
		runner.NewExecutor(time.Second, true),
		session.NewManager(dir),
		audit.NewWriter(auditPath),
	)
	return p, auditPath
}

func readIntentFor(op intent.Operation) *intent.Intent {
	in := &intent.Intent{
		QueryType:      intent.QuerySimple,
		Operation:      op,
		Confidence:     intent.ConfidenceHigh,
		PrimaryService: "ec2",
		PrimaryResource: intent.Resource{
			Service:      "ec2",
			ResourceType: "instance",
			ResourceIDs:  []string{"i-1"},
		},
		Action:  "list",
		Regions: []string{"us-east-1"},
	}
	if op.IsMutating() {
		in.Action = "stop"
	}
	return in
}

func TestPipeline_ReadQueryExecutes(t *testing.T) {
	ex := &stubExtractor{rules: []stubRule{
		{match: "list", intent: readIntentFor(intent.OperationRead)},
	}}
	gen := &stubGenerator{command: "aws ec2 describe-instances --region us-east-1 --output json"}
	p, auditPath := testPipeline(t, ex, gen)

	resp, err := p.Query(context.Background(), "list my instances", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Result.Decision != gate.DecisionProceed {
		t.Fatalf("expected proceed, got %s (%s)", resp.Result.Decision, resp.Result.Reasoning)
	}
	if resp.Command == "" {
		t.Fatal("proceed should generate a command")
	}
	if resp.Execution == nil || !resp.Execution.DryRun {
		t.Fatalf("expected dry-run execution, got %+v", resp.Execution)
	}
	if gen.tier != gate.TierReadOnly {
		t.Fatalf("generator should receive the read-only tier, got %s", gen.tier)
	}
	if resp.ConversationID == "" || resp.RequestID == "" {
		t.Fatal("response should carry generated ids")
	}

	lines := auditLines(t, auditPath)
	if len(lines) != 2 {
		t.Fatalf("expected decision and execution audit events, got %d lines", len(lines))
	}
}

func TestPipeline_ConfirmFlow(t *testing.T) {
	confirmTarget := readIntentFor(intent.OperationWrite)
	confirmTarget.PrimaryResource.ResourceIDs = []string{"i-prod-001"}
	ex := &stubExtractor{rules: []stubRule{
		{match: "stop", intent: confirmTarget},
	}}
	gen := &stubGenerator{command: "aws ec2 stop-instances --instance-ids i-prod-001 --region us-east-1 --output json"}
	p, auditPath := testPipeline(t, ex, gen)

	resp, err := p.Query(context.Background(), "stop the instance", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Result.Decision != gate.DecisionConfirm {
		t.Fatalf("expected confirm, got %s (%s)", resp.Result.Decision, resp.Result.Reasoning)
	}
	if resp.Command != "" {
		t.Fatal("confirm must not generate a command")
	}

	followup, err := p.Followup(context.Background(), resp.ConversationID, "yes, go ahead")
	if err != nil {
		t.Fatalf("Followup: %v", err)
	}
	if followup.Result.Decision != gate.DecisionProceed {
		t.Fatalf("expected proceed after confirmation, got %s", followup.Result.Decision)
	}
	if followup.Command == "" || followup.Execution == nil {
		t.Fatal("confirmed operation should generate and run the command")
	}
	if gen.tier != gate.TierWrite {
		t.Fatalf("generator should receive the write tier, got %s", gen.tier)
	}

	if n := countAuditEvents(t, auditPath, audit.TypeConfirmation); n != 1 {
		t.Fatalf("expected one confirmation audit event, got %d", n)
	}
}

func TestPipeline_RejectedFollowupStops(t *testing.T) {
	protected := readIntentFor(intent.OperationWrite)
	protected.PrimaryResource.ResourceIDs = []string{"i-prod-001"}
	ex := &stubExtractor{rules: []stubRule{
		{match: "stop", intent: protected},
	}}
	gen := &stubGenerator{command: "aws ec2 stop-instances --instance-ids i-prod-001 --region us-east-1 --output json"}
	p, _ := testPipeline(t, ex, gen)

	resp, err := p.Query(context.Background(), "stop the instance", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	followup, err := p.Followup(context.Background(), resp.ConversationID, "cancel")
	if err != nil {
		t.Fatalf("Followup: %v", err)
	}
	if followup.Result.Decision != gate.DecisionReject {
		t.Fatalf("expected reject, got %s", followup.Result.Decision)
	}
	if followup.Command != "" {
		t.Fatal("rejected operation must not generate a command")
	}

	// The conversation is settled; another followup has nothing to resume.
	if _, err := p.Followup(context.Background(), resp.ConversationID, "confirm"); err == nil {
		t.Fatal("expected error for followup on a settled conversation")
	}
}

func TestPipeline_ClarifyFollowupReExtracts(t *testing.T) {
	vague := readIntentFor(intent.OperationWrite)
	vague.Regions = nil

	refined := readIntentFor(intent.OperationWrite)
	refined.Action = "update"

	// The refined rule must come first: the clarify followup combines the
	// original query with the reply, so both substrings are present.
	ex := &stubExtractor{rules: []stubRule{
		{match: "us-east-1", intent: refined},
		{match: "stop the instance", intent: vague},
	}}
	gen := &stubGenerator{command: "aws ec2 modify-instance-attribute --instance-id i-1 --region us-east-1 --output json"}
	p, auditPath := testPipeline(t, ex, gen)

	resp, err := p.Query(context.Background(), "stop the instance", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Result.Decision != gate.DecisionClarify {
		t.Fatalf("expected clarify, got %s (%s)", resp.Result.Decision, resp.Result.Reasoning)
	}

	followup, err := p.Followup(context.Background(), resp.ConversationID, "us-east-1")
	if err != nil {
		t.Fatalf("Followup: %v", err)
	}
	if followup.Result.Decision != gate.DecisionProceed {
		t.Fatalf("expected proceed after clarification, got %s (%s)",
			followup.Result.Decision, followup.Result.Reasoning)
	}

	// A clarify reply is a refinement, not a confirmation.
	if n := countAuditEvents(t, auditPath, audit.TypeConfirmation); n != 0 {
		t.Fatalf("clarify followup must not emit confirmation audit events, got %d", n)
	}
}

func TestPipeline_FollowupWithoutPending(t *testing.T) {
	p, _ := testPipeline(t, &stubExtractor{}, &stubGenerator{})
	_, err := p.Followup(context.Background(), "ghost", "confirm")
	if err == nil {
		t.Fatal("expected error for unknown conversation")
	}
	if !errors.Is(err, ErrNoPending) {
		t.Fatalf("expected ErrNoPending, got: %v", err)
	}
}

func TestPipeline_ExtractionFailureRejects(t *testing.T) {
	p, _ := testPipeline(t, &stubExtractor{}, &stubGenerator{})

	resp, err := p.Query(context.Background(), "gibberish", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Result.Decision != gate.DecisionReject {
		t.Fatalf("expected reject for failed extraction, got %s", resp.Result.Decision)
	}
	if len(resp.Result.ClarifyingQuestions) == 0 {
		t.Fatal("rejection should carry clarifying questions")
	}
}

func countAuditEvents(t *testing.T, path, eventType string) int {
	t.Helper()
	count := 0
	for _, line := range auditLines(t, path) {
		var event audit.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("unmarshal audit line: %v", err)
		}
		if event.Type == eventType {
			count++
		}
	}
	return count
}

func auditLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan audit file: %v", err)
	}
	return lines
}
