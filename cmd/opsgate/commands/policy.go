package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/halvden/opsgate/internal/config"
	"github.com/halvden/opsgate/internal/policy"
)

func NewPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage the policy file",
	}

	cmd.AddCommand(
		newPolicyListCmd(),
		newPolicyValidateCmd(),
		newPolicyInitCmd(),
	)

	return cmd
}

func newPolicyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured policies and their statements",
		RunE:  runPolicyList,
	}
}

func newPolicyValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the policy file",
		RunE:  runPolicyValidate,
	}
}

func newPolicyInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a policy file from a template",
		RunE:  runPolicyInit,
	}
	cmd.Flags().String("template", "default", "template: default, read-only, deny-production, approval-critical")
	cmd.Flags().Bool("force", false, "overwrite an existing policy file")
	return cmd
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	policies, err := policy.LoadFile(cfg.PolicyPath())
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}
	if len(policies) == 0 {
		fmt.Println("No policies configured.")
		if cfg.Policy.UseDefaults {
			fmt.Println("The default policy set applies (run 'opsgate policy init' to materialize it).")
		}
		return nil
	}

	for _, p := range policies {
		fmt.Printf("%s", p.Name)
		if p.Description != "" {
			fmt.Printf(" - %s", p.Description)
		}
		fmt.Println()
		for _, s := range p.Statements {
			ops := make([]string, 0, len(s.Operations))
			for _, op := range s.Operations {
				ops = append(ops, string(op))
			}
			fmt.Printf("  [%s] %s: %s on %s\n",
				strings.ToUpper(string(s.Effect)), s.SID,
				strings.Join(ops, ","), formatResources(s.Resources))
		}
	}
	return nil
}

func formatResources(patterns []policy.ResourcePattern) string {
	parts := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p.MatchesAll() {
			parts = append(parts, "*")
			continue
		}
		service := p.Service
		if service == "" {
			service = "*"
		}
		rtype := p.ResourceType
		if rtype == "" {
			rtype = "*"
		}
		parts = append(parts, service+"/"+rtype)
	}
	return strings.Join(parts, ", ")
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path := cfg.PolicyPath()
	policies, err := policy.LoadFile(path)
	if err != nil {
		return fmt.Errorf("policy file %s: %w", path, err)
	}
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("policy %q: %w", p.Name, err)
		}
	}
	fmt.Printf("OK: %d policies valid (%s).\n", len(policies), path)
	return nil
}

func runPolicyInit(cmd *cobra.Command, args []string) error {
	template, _ := cmd.Flags().GetString("template")
	force, _ := cmd.Flags().GetBool("force")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path := cfg.PolicyPath()
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("policy file already exists at %s (use --force to overwrite)", path)
		}
	}

	policies, err := policiesForTemplate(template)
	if err != nil {
		return err
	}
	if err := policy.SaveFile(path, policies); err != nil {
		return fmt.Errorf("failed to write policy file: %w", err)
	}
	fmt.Printf("Wrote %d policies to %s.\n", len(policies), path)
	return nil
}

func policiesForTemplate(name string) ([]policy.Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "default", "":
		return policy.DefaultPolicies(), nil
	case "read-only":
		return []policy.Policy{policy.ReadOnly()}, nil
	case "deny-production":
		return []policy.Policy{policy.ReadOnly(), policy.DenyProductionModifications()}, nil
	case "approval-critical":
		return []policy.Policy{policy.ReadOnly(), policy.RequireApprovalForCritical()}, nil
	default:
		return nil, fmt.Errorf("unknown template %q", name)
	}
}
