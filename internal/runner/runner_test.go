package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/halvden/opsgate/internal/gate"
	"github.com/halvden/opsgate/internal/intent"
)

// fakeModel returns a canned response and records the messages it saw.
type fakeModel struct {
	response string
	err      error
	seen     []*schema.Message
}

func (f *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.seen = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.response, nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func (f *fakeModel) BindTools(tools []*schema.ToolInfo) error { return nil }

func stopIntent() *intent.Intent {
	return &intent.Intent{
		Operation:      intent.OperationWrite,
		Confidence:     intent.ConfidenceHigh,
		PrimaryService: "ec2",
		PrimaryResource: intent.Resource{
			Service:     "ec2",
			ResourceIDs: []string{"i-123"},
		},
		Action:  "stop",
		Regions: []string{"us-east-1"},
	}
}

func TestGenerate_ReturnsCleanCommand(t *testing.T) {
	fake := &fakeModel{response: "```bash\naws ec2 stop-instances --instance-ids i-123 --region us-east-1 --output json\n```"}
	g := NewLLMGenerator(fake)

	cmd, err := g.Generate(context.Background(), stopIntent(), gate.TierWrite)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := "aws ec2 stop-instances --instance-ids i-123 --region us-east-1 --output json"
	if cmd != want {
		t.Fatalf("got %q, want %q", cmd, want)
	}
}

func TestGenerate_SystemPromptFollowsTier(t *testing.T) {
	fake := &fakeModel{response: "aws ec2 describe-instances --region us-east-1 --output json"}
	g := NewLLMGenerator(fake)

	if _, err := g.Generate(context.Background(), stopIntent(), gate.TierReadOnly); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(fake.seen) < 2 || fake.seen[0].Role != schema.System {
		t.Fatalf("expected a system message first, got %v", fake.seen)
	}
	if !strings.Contains(fake.seen[0].Content, "ONLY read-only operations") {
		t.Fatalf("read-only tier should restrict operations in the system prompt")
	}

	if _, err := g.Generate(context.Background(), stopIntent(), gate.TierDestructive); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(fake.seen[0].Content, "destructive operations") {
		t.Fatalf("destructive tier should permit destructive operations in the system prompt")
	}
}

func TestGenerate_RejectsNonAWSCommand(t *testing.T) {
	fake := &fakeModel{response: "rm -rf /tmp/scratch"}
	g := NewLLMGenerator(fake)

	if _, err := g.Generate(context.Background(), stopIntent(), gate.TierWrite); err == nil {
		t.Fatal("expected error for non-aws command")
	}
}

func TestCleanCommand(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "aws s3api list-buckets --output json", want: "aws s3api list-buckets --output json"},
		{raw: "\"aws s3api list-buckets --output json\"", want: "aws s3api list-buckets --output json"},
		{raw: "```bash\naws ec2 describe-instances\n```", want: "aws ec2 describe-instances"},
		{raw: "\n\n  aws iam list-users  \n explanation follows", want: "aws iam list-users"},
		{raw: "   \n\t\n", wantErr: true},
	}

	for _, tt := range tests {
		got, err := cleanCommand(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("cleanCommand(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("cleanCommand(%q): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("cleanCommand(%q)=%q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		command string
		wantErr bool
	}{
		{command: "aws ec2 describe-instances --region us-east-1 --output json", wantErr: false},
		{command: "rm -rf /", wantErr: true},
		{command: "aws ec2 describe-instances; rm -rf /", wantErr: true},
		{command: "aws s3 cp s3://bucket/key - | sh", wantErr: true},
		{command: "aws ec2 stop-instances --instance-ids <instance-id> --region us-east-1", wantErr: true},
		{command: "aws ec2 describe-instances --query $(whoami)", wantErr: true},
	}

	for _, tt := range tests {
		err := ValidateCommand(tt.command)
		if tt.wantErr && err == nil {
			t.Fatalf("ValidateCommand(%q): expected error", tt.command)
		}
		if !tt.wantErr && err != nil {
			t.Fatalf("ValidateCommand(%q): %v", tt.command, err)
		}
	}
}

func TestExecutor_DryRun(t *testing.T) {
	e := NewExecutor(time.Second, true)

	result, err := e.Run(context.Background(), "aws ec2 describe-instances --region us-east-1 --output json")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.DryRun {
		t.Fatal("expected dry-run result")
	}
	if result.Stdout != "" || result.ExitCode != 0 {
		t.Fatalf("dry run should not execute anything, got %+v", result)
	}
}

func TestExecutor_RejectsInvalidCommand(t *testing.T) {
	e := NewExecutor(time.Second, true)

	if _, err := e.Run(context.Background(), "aws ec2 terminate-instances --instance-ids <id>"); err == nil {
		t.Fatal("expected error for unresolved placeholder")
	}
	if _, err := e.Run(context.Background(), "echo hi && aws ec2 describe-instances"); err == nil {
		t.Fatal("expected error for non-aws compound command")
	}
}
