package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the composable CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "composable",
		Short: "Drive, record and replay composable demo features",
		Long: `composable runs scripted scenarios against the demo features of the
state runtime, records their actions into a SQLite journal and replays
recorded sessions to check that the reducers still produce the same states.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewFeaturesCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))

	return cmd
}

// logger returns a debug logger on stderr in verbose mode and a discarding
// one otherwise.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !o.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// Execute runs the CLI with args and returns the process exit code. Errors
// not already printed by a command are written to stderr, or to stdout as a
// JSON error response when --format json is set.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SilenceErrors = true

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	code := GetExitCode(err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Printed {
		return code
	}
	format, _ := cmd.PersistentFlags().GetString("format")
	f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr}
	_ = f.Error(ErrCodeCommand, err.Error(), nil)
	return code
}
