package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/datakit/infrastructure/config"
)

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	var strictEnv bool

	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoaderWithOptions(
				config.WithStrictEnv(strictEnv),
			)

			cfg, err := loader.LoadFile(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "Configuration is valid\n")
			fmt.Fprintf(a.stdout, "  store driver: %s\n", cfg.Store.Driver)
			fmt.Fprintf(a.stdout, "  cache policy: %s (capacity %d)\n", cfg.Cache.Policy, cfg.Cache.Capacity)
			fmt.Fprintf(a.stdout, "  retry: %d attempts, base delay %s\n", cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay.Duration)
			return nil
		},
	}

	cmd.Flags().BoolVar(&strictEnv, "strict-env", false, "fail on unset environment variables")
	return cmd
}
