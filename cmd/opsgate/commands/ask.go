package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/halvden/opsgate/internal/agent"
	"github.com/halvden/opsgate/internal/config"
	"github.com/halvden/opsgate/internal/gate"
	"github.com/halvden/opsgate/internal/provider"
)

func NewAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [query]",
		Short: "Ask Opsgate to run an AWS operation",
		RunE:  runAsk,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	model, err := provider.NewChatModel(ctx, cfg)
	if err != nil {
		return fmt.Errorf("no model configured: %w", err)
	}

	pipeline, err := agent.New(cfg, model)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	if len(args) > 0 {
		query := strings.Join(args, " ")
		resp, err := pipeline.Query(ctx, query, "")
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	}

	fmt.Println("Opsgate ready. Type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)

	conversationID := ""
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "exit" || input == "quit" {
			break
		}
		if input == "" {
			continue
		}

		var resp *agent.Response
		if _, pending := pipeline.Tracker().Pending(conversationID); pending {
			resp, err = pipeline.Followup(ctx, conversationID, input)
		} else {
			resp, err = pipeline.Query(ctx, input, conversationID)
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		conversationID = resp.ConversationID
		printResponse(resp)
	}

	return nil
}

func printResponse(resp *agent.Response) {
	result := resp.Result

	switch result.Decision {
	case gate.DecisionProceed:
		fmt.Printf("[proceed] %s\n", result.Reasoning)
	case gate.DecisionConfirm:
		fmt.Printf("[confirm] %s\n", result.Reasoning)
	case gate.DecisionClarify:
		fmt.Printf("[clarify] %s\n", result.Reasoning)
	case gate.DecisionReject:
		fmt.Printf("[reject] %s\n", result.Reasoning)
	}

	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	for _, c := range result.RequiredConfirmations {
		fmt.Printf("  %s\n", c)
	}
	for _, q := range result.ClarifyingQuestions {
		fmt.Printf("  %s\n", q)
	}

	if resp.Command != "" {
		fmt.Printf("\n$ %s\n", resp.Command)
	}
	if resp.Execution != nil {
		if resp.Execution.DryRun {
			fmt.Println("(dry run, not executed)")
		} else {
			if out := strings.TrimSpace(resp.Execution.Stdout); out != "" {
				fmt.Println(out)
			}
			if errOut := strings.TrimSpace(resp.Execution.Stderr); errOut != "" {
				fmt.Fprintln(os.Stderr, errOut)
			}
			if resp.Execution.ExitCode != 0 {
				fmt.Printf("(exit code %d)\n", resp.Execution.ExitCode)
			}
		}
	}
}
