package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/halvden/opsgate/internal/version"
)

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of Opsgate",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("opsgate %s %s/%s\n", version.Version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
