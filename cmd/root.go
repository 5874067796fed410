// Package cmd defines and implements the CLI commands for the
// paperfind executable.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nkhosla/paperfind/internal/config"
	"github.com/nkhosla/paperfind/internal/logging"
)

// Exit codes: success with results, no matches found, fatal error.
const (
	ExitOK        = 0
	ExitFatal     = 1
	ExitNoMatches = 2
)

// errNoMatches is the distinguished "scan succeeded, nothing matched"
// outcome, mapped to ExitNoMatches.
var errNoMatches = errors.New("no matching files found")

var (
	cfgFile string
	verbose bool

	cfg    config.Config
	logger *zap.Logger
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paperfind",
		Short: "Find newspapers and magazines posted to Telegram channels.",
		Long: `paperfind scans the broadcast channels visible to an authorized
Telegram account for newspaper and magazine documents, matches them
against keyword/date patterns or a free-text AI query, and writes a
ranked result set with deep links back to the original messages.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg = loaded

			development := cfg.Logging.Development || verbose
			l, err := logging.New(development)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			if !verbose {
				l = l.WithOptions(zap.IncreaseLevel(zap.InfoLevel))
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is paperfind.yaml keys via PAPERFIND_* env)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose (debug) output")

	cmd.AddCommand(newScanCmd())
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	err := newRootCmd().Execute()
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errNoMatches):
		if logger != nil {
			logger.Warn(errNoMatches.Error())
		}
		return ExitNoMatches
	default:
		// Every fatal condition produces exactly one diagnostic line.
		if logger != nil {
			logger.Error("fatal", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "paperfind: %v\n", err)
		}
		return ExitFatal
	}
}
