package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/google/uuid"

	"github.com/halvden/opsgate/internal/audit"
	"github.com/halvden/opsgate/internal/config"
	"github.com/halvden/opsgate/internal/extractor"
	"github.com/halvden/opsgate/internal/gate"
	"github.com/halvden/opsgate/internal/intent"
	"github.com/halvden/opsgate/internal/policy"
	"github.com/halvden/opsgate/internal/runner"
	"github.com/halvden/opsgate/internal/session"
)

// ErrNoPending reports a followup for a conversation with nothing awaiting
// a reply. Callers use it to tell a stale conversation apart from a
// downstream failure.
var ErrNoPending = errors.New("no pending request for conversation")

// Response is the outcome of one pipeline turn.
type Response struct {
	RequestID      string             `json:"request_id"`
	ConversationID string             `json:"conversation_id"`
	Result         gate.Result        `json:"result"`
	Command        string             `json:"command,omitempty"`
	Execution      *runner.ExecResult `json:"execution,omitempty"`
}

// Pipeline wires extraction, gating, command generation and execution into
// one flow. A query either executes, or comes back with the questions and
// confirmations needed to move it forward on the next turn.
type Pipeline struct {
	extractor *extractor.Pipeline
	tracker   *gate.Tracker
	generator runner.Generator
	executor  *runner.Executor
	sessions  *session.Manager
	audit     *audit.Writer
	now       func() time.Time
}

// NewPipeline assembles a pipeline from pre-built components. The audit
// writer may be nil to disable the audit trail.
func NewPipeline(ex extractor.Extractor, tracker *gate.Tracker, gen runner.Generator,
	execr *runner.Executor, sessions *session.Manager, auditWriter *audit.Writer) *Pipeline {
	return &Pipeline{
		extractor: extractor.NewPipeline(ex),
		tracker:   tracker,
		generator: gen,
		executor:  execr,
		sessions:  sessions,
		audit:     auditWriter,
		now:       time.Now,
	}
}

// New builds the full pipeline from configuration and a chat model: policy
// engine from the policy store, gate from the gate settings, LLM extractor
// and generator over the model.
func New(cfg *config.Config, chatModel model.ChatModel) (*Pipeline, error) {
	engine, err := buildEngine(cfg)
	if err != nil {
		return nil, err
	}

	g := gate.New(gateConfigFrom(cfg), engine)

	var auditWriter *audit.Writer
	if cfg.Audit.Enabled {
		auditWriter = audit.NewWriter(cfg.AuditPath())
	}

	return NewPipeline(
		extractor.NewLLM(chatModel, cfg.Gate.DefaultRegions...),
		gate.NewTracker(g),
		runner.NewLLMGenerator(chatModel),
		runner.NewExecutor(time.Duration(cfg.Executor.Timeout)*time.Second, cfg.Executor.DryRun),
		session.NewManager(config.ConfigDir()),
		auditWriter,
	), nil
}

func buildEngine(cfg *config.Config) (*policy.Engine, error) {
	if !cfg.Policy.Enabled {
		return nil, nil
	}

	policies, err := policy.LoadFile(cfg.PolicyPath())
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	if len(policies) == 0 && cfg.Policy.UseDefaults {
		policies = policy.DefaultPolicies()
	}
	return policy.NewEngine(policies...)
}

// gateConfigFrom maps the file-level gate settings onto the gate's config.
func gateConfigFrom(cfg *config.Config) gate.Config {
	gc := gate.DefaultConfig()
	if cfg.Gate.MinConfidenceProceed != "" {
		gc.MinConfidenceProceed = intent.Confidence(cfg.Gate.MinConfidenceProceed)
	}
	if cfg.Gate.MinConfidenceWrite != "" {
		gc.MinConfidenceWrite = intent.Confidence(cfg.Gate.MinConfidenceWrite)
	}
	gc.RequireConfirmationForDelete = cfg.Gate.RequireConfirmationForDelete
	if cfg.Gate.MaxResourceLimit > 0 {
		gc.MaxResourceLimit = cfg.Gate.MaxResourceLimit
	}
	if len(cfg.Gate.ProtectedPatterns) > 0 {
		gc.ProtectedPatterns = cfg.Gate.ProtectedPatterns
	}
	gc.EnablePolicies = cfg.Policy.Enabled
	return gc
}

// Tracker exposes the underlying tracker, mainly for inspection commands.
func (p *Pipeline) Tracker() *gate.Tracker { return p.tracker }

// Query processes one natural-language query. An empty conversation id
// starts a new conversation.
func (p *Pipeline) Query(ctx context.Context, query, conversationID string) (*Response, error) {
	requestID := uuid.NewString()
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	conv := p.sessions.GetOrCreate(conversationID)
	conv.Append("user", query, "")

	in := p.extractor.ExtractIntent(ctx, query)
	result := p.tracker.Evaluate(in, conversationID)

	return p.finish(ctx, requestID, conversationID, query, conv, result)
}

// Followup advances a pending conversation. Replies to a confirm go through
// phrase matching; replies to a clarify are re-extracted as a refined query.
func (p *Pipeline) Followup(ctx context.Context, conversationID, reply string) (*Response, error) {
	requestID := uuid.NewString()

	pending, ok := p.tracker.Pending(conversationID)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoPending, conversationID)
	}

	conv := p.sessions.GetOrCreate(conversationID)
	conv.Append("user", reply, "")

	var newIntent *intent.Intent
	if pending.Decision == gate.DecisionClarify {
		// The reply is treated as a refinement of the original query.
		combined := pending.Intent.OriginalQuery + "\n" + reply
		newIntent = p.extractor.ExtractIntent(ctx, combined)
	}

	result, handled := p.tracker.ProcessFollowup(conversationID, reply, newIntent)
	if !handled {
		// Pending state was resolved between the lookup and the followup.
		return nil, fmt.Errorf("%w %s", ErrNoPending, conversationID)
	}

	// Clarify replies are refinements, not confirmations; their outcome is
	// recorded by the decision event in finish.
	if pending.Decision == gate.DecisionConfirm {
		p.auditEvent(audit.Event{
			Type:           audit.TypeConfirmation,
			RequestID:      requestID,
			ConversationID: conversationID,
			Query:          reply,
			Decision:       string(result.Decision),
		})
	}

	return p.finish(ctx, requestID, conversationID, reply, conv, result)
}

// finish records the decision, runs the command when the gate lets it
// through, and persists the transcript.
func (p *Pipeline) finish(ctx context.Context, requestID, conversationID, query string,
	conv *session.Conversation, result gate.Result) (*Response, error) {

	conv.Append("gate", result.Reasoning, string(result.Decision))

	event := audit.Event{
		Type:           audit.TypeDecision,
		RequestID:      requestID,
		ConversationID: conversationID,
		Query:          query,
		Decision:       string(result.Decision),
		Tier:           string(result.Tier),
	}
	if result.Intent != nil {
		event.Operation = string(result.Intent.Operation)
		event.Service = result.Intent.PrimaryService
	}
	p.auditEvent(event)

	response := &Response{
		RequestID:      requestID,
		ConversationID: conversationID,
		Result:         result,
	}

	if result.Decision == gate.DecisionProceed {
		if err := p.execute(ctx, requestID, conversationID, conv, response); err != nil {
			return response, err
		}
	}

	if err := p.sessions.Save(conv); err != nil {
		slog.Warn("failed to persist conversation", "conversation_id", conversationID, "error", err)
	}
	return response, nil
}

func (p *Pipeline) execute(ctx context.Context, requestID, conversationID string,
	conv *session.Conversation, response *Response) error {

	command, err := p.generator.Generate(ctx, response.Result.Intent, response.Result.Tier)
	if err != nil {
		return fmt.Errorf("command generation: %w", err)
	}
	response.Command = command

	execution, err := p.executor.Run(ctx, command)
	outcome := "ok"
	if err != nil {
		outcome = err.Error()
	}

	p.auditEvent(audit.Event{
		Type:           audit.TypeExecution,
		RequestID:      requestID,
		ConversationID: conversationID,
		Command:        command,
		Tier:           string(response.Result.Tier),
		Result:         outcome,
	})

	if err != nil {
		conv.Append("executor", err.Error(), "")
		return fmt.Errorf("command execution: %w", err)
	}

	response.Execution = execution
	conv.Append("executor", command, "")
	return nil
}

func (p *Pipeline) auditEvent(event audit.Event) {
	if p.audit == nil {
		return
	}
	event.Time = p.now().UTC()
	if err := p.audit.Append(event); err != nil {
		slog.Warn("failed to write audit event", "type", event.Type, "error", err)
	}
}
