package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/warden/internal/adapters/shell"
	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/db"
	"github.com/example/warden/internal/ports/secondary"
)

// DoctorCmd returns the doctor command
func DoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check config, database, and backend binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := color.New(color.FgGreen).Sprint("OK")
			missing := color.New(color.FgRed).Sprint("MISSING")

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			cfg, err := config.Load(cwd)
			if err != nil {
				fmt.Printf("config:   %s (.warden/config.json not readable: %v)\n", missing, err)
				fmt.Println("          run `warden init` to create one")
				cfg = config.Default()
			} else {
				fmt.Printf("config:   %s (%d backend(s), threshold %d, reset %dms)\n",
					ok, len(cfg.Backends), cfg.BreakerThreshold(), cfg.BreakerResetMs())
			}

			path, err := db.DefaultPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				fmt.Printf("database: %s (%s does not exist yet, created on first use)\n",
					color.New(color.FgYellow).Sprint("ABSENT"), path)
			} else {
				fmt.Printf("database: %s (%s)\n", ok, path)
			}

			invoker := shell.NewInvoker()
			for _, b := range cfg.Backends {
				spec := secondary.BackendSpec{Name: b.Name, Command: b.Command, Args: b.Args}
				if err := invoker.Available(spec); err != nil {
					fmt.Printf("backend:  %s %s (%v)\n", missing, b.Name, err)
				} else {
					fmt.Printf("backend:  %s %s (%s)\n", ok, b.Name, b.Command)
				}
			}

			return nil
		},
	}

	return cmd
}
