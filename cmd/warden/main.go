package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/cli"
	"github.com/example/warden/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "warden",
		Short:   "warden - reliability and autonomy gate for AI CLI backends",
		Version: version.String(),
		Long: `warden routes tasks to external AI CLI backends through a uniform
interface, gating every operation against a declared autonomy level and
tracking per-backend health with circuit breakers so failing backends
are skipped or failed over automatically.`,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.RunCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.AuditCmd())
	rootCmd.AddCommand(cli.ResetCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
