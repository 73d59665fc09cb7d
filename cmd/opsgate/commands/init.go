package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/halvden/opsgate/internal/config"
	"github.com/halvden/opsgate/internal/policy"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Opsgate configuration",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()

	dirs := []string{
		config.ConfigDir(),
		filepath.Join(config.ConfigDir(), "conversations"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	policyPath := cfg.PolicyPath()
	if _, err := os.Stat(policyPath); os.IsNotExist(err) {
		if err := policy.SaveFile(policyPath, policy.DefaultPolicies()); err != nil {
			return fmt.Errorf("failed to write default policies: %w", err)
		}
	}

	fmt.Printf("Opsgate initialized!\n")
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Policies: %s\n", policyPath)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Edit %s to add your API keys\n", configPath)
	fmt.Printf("2. Run 'opsgate ask' to start querying\n")

	return nil
}
