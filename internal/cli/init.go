package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .warden/config.json and the warden database",
		Long: `Write a starter config with the default breaker tuning and example
backend entries to .warden/config.json in the current directory, and
create the database (with schema) at ~/.warden/warden.db.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			if _, err := config.Load(cwd); err == nil {
				return fmt.Errorf(".warden/config.json already exists")
			}

			cfg := config.Default()
			cfg.Backends = []config.Backend{
				{Name: "architect", Command: "claude", Args: []string{"-p"}, Role: "design and planning"},
				{Name: "implementer", Command: "codex", Args: []string{"exec"}, Role: "code changes"},
				{Name: "tester", Command: "claude", Args: []string{"-p"}, Role: "test authoring and runs"},
			}
			if err := config.Save(cwd, cfg); err != nil {
				return err
			}
			fmt.Println("✓ Wrote .warden/config.json (edit the backend commands to match your tools)")

			path, err := db.DefaultPath()
			if err != nil {
				return err
			}
			conn, err := db.Open(path)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Printf("✓ Database ready at %s\n", path)

			return nil
		},
	}

	return cmd
}
