package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/halvden/opsgate/internal/gate"
	"github.com/halvden/opsgate/internal/intent"
)

// Generator produces an AWS CLI command for a gated intent. The capability
// tier is the gate's resolved permission level and bounds what kinds of
// operations the generated command may contain.
type Generator interface {
	Generate(ctx context.Context, in *intent.Intent, tier gate.CapabilityTier) (string, error)
}

// LLMGenerator generates commands with a chat model.
type LLMGenerator struct {
	model model.ChatModel
}

// NewLLMGenerator builds a generator over the given chat model.
func NewLLMGenerator(m model.ChatModel) *LLMGenerator {
	return &LLMGenerator{model: m}
}

const generatorBasePrompt = `You are an AWS CLI command generator. Your job is to generate VALID AWS CLI commands from user intent.

Given an intent with service, region, and operation, generate the appropriate AWS CLI command.

CRITICAL RULES:
1. Return ONLY the AWS CLI command, nothing else
2. Always include --region flag with the region
3. Use --output json for parseable results
4. %s
5. For large result sets, include --max-items if appropriate
6. Do NOT include any explanations, markdown, or surrounding text

COMMAND STRUCTURE: aws <service> <operation> --region <region> --output json [--options]

Examples:
Intent: {service: "ec2", region: "us-east-1", action: "list"}
Output: aws ec2 describe-instances --region us-east-1 --output json

Intent: {service: "s3", region: "us-west-2", action: "list"}
Output: aws s3api list-buckets --region us-west-2 --output json

Intent: {service: "ec2", region: "us-east-1", action: "stop", resource_ids: ["i-123"]}
Output: aws ec2 stop-instances --instance-ids i-123 --region us-east-1 --output json

Intent: {service: "rds", region: "eu-west-1", action: "describe"}
Output: aws rds describe-db-instances --region eu-west-1 --output json

IMPORTANT NOTES:
- Map intent actions to actual AWS CLI operations (e.g., "list" becomes "describe-instances" for EC2)
- Use the resource ids from the intent directly; never invent placeholder ids
- Use service-specific command names (e.g., "s3api" for some S3 operations)
- The command MUST be executable by AWS CLI
- Return ONLY the command line, no quotes, no markdown, no explanation

RETURN FORMAT: Single line AWS CLI command starting with "aws"`

// tierRestrictions maps a capability tier to the operation restriction line
// in the system prompt. Unknown tiers fall back to read-only.
func tierRestrictions(tier gate.CapabilityTier) string {
	switch tier {
	case gate.TierWrite:
		return "Can include write operations (start, stop, reboot, create, update, modify, invoke, put) as needed. NO delete or terminate operations."
	case gate.TierDestructive:
		return "Can include destructive operations (delete, terminate, remove) as needed."
	default:
		return "ONLY read-only operations (list, describe, get, head, show, query, scan). NO write or delete operations."
	}
}

// Generate asks the model for a single CLI command and validates its shape.
func (g *LLMGenerator) Generate(ctx context.Context, in *intent.Intent, tier gate.CapabilityTier) (string, error) {
	region := ""
	if len(in.Regions) > 0 {
		region = in.Regions[0]
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Generate the AWS CLI command for this intent:\n")
	fmt.Fprintf(&prompt, "Service: %s\n", in.PrimaryService)
	fmt.Fprintf(&prompt, "Region: %s\n", region)
	fmt.Fprintf(&prompt, "Action: %s\n", in.Action)
	if in.PrimaryResource.ResourceType != "" {
		fmt.Fprintf(&prompt, "Resource Type: %s\n", in.PrimaryResource.ResourceType)
	}
	if len(in.PrimaryResource.ResourceIDs) > 0 {
		fmt.Fprintf(&prompt, "Resource IDs: %s\n", strings.Join(in.PrimaryResource.ResourceIDs, ", "))
	}
	prompt.WriteString("\nReturn ONLY the command.")

	msg, err := g.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(generatorBasePrompt, tierRestrictions(tier))),
		schema.UserMessage(prompt.String()),
	}, model.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("model generate: %w", err)
	}
	if msg == nil {
		return "", fmt.Errorf("empty response from model")
	}

	command, err := cleanCommand(msg.Content)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(command, "aws ") {
		return "", fmt.Errorf("generated command does not start with 'aws': %s", command)
	}

	slog.Debug("generated command", "command", command, "tier", tier)
	return command, nil
}

// cleanCommand strips code fences, quotes and surrounding prose, returning
// the first non-empty line.
func cleanCommand(raw string) (string, error) {
	raw = strings.ReplaceAll(raw, "```bash", "")
	raw = strings.ReplaceAll(raw, "```sh", "")
	raw = strings.ReplaceAll(raw, "```", "")
	raw = strings.Trim(strings.TrimSpace(raw), `"'`)

	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("no command found in model output")
}
