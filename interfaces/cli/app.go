// Package cli provides the command-line interface for datakit.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "datakit",
		Short: "Resilient data access wrappers for Go",
		Long: `datakit wraps data operations with caching, retry, transactions and
resource scoping, composed as middleware around plain functions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add subcommands
	app.root.AddCommand(
		app.newVersionCmd(),
		app.newValidateCmd(),
		app.newDemoCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "datakit version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}
