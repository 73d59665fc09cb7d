package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halvden/opsgate/internal/config"
	"github.com/halvden/opsgate/internal/gate"
	"github.com/halvden/opsgate/internal/intent"
	"github.com/halvden/opsgate/internal/policy"
)

func NewGateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gate <intent.json>",
		Short: "Evaluate a structured intent through the gate",
		Long: `Reads a JSON intent document and runs it through the gate without
extracting from natural language or executing anything. Useful for
testing policy files and gate configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: runGate,
	}
}

func runGate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read intent file: %w", err)
	}

	var in intent.Intent
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("invalid intent JSON: %w", err)
	}

	var engine *policy.Engine
	if cfg.Policy.Enabled {
		policies, err := policy.LoadFile(cfg.PolicyPath())
		if err != nil {
			return fmt.Errorf("failed to load policies: %w", err)
		}
		if len(policies) == 0 && cfg.Policy.UseDefaults {
			policies = policy.DefaultPolicies()
		}
		engine, err = policy.NewEngine(policies...)
		if err != nil {
			return fmt.Errorf("invalid policies: %w", err)
		}
	}

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

	g := gate.New(gc, engine)

	result := g.Evaluate(&in)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
