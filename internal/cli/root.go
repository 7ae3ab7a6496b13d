// Package cli implements newsctl, a command line visitor of the news site:
// it keeps a local profile like the browser does and guards reactions and
// comments with the deduplicator.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cthulhu-news/internal/config"
	"cthulhu-news/internal/logging"
)

// RootOptions holds global flags and the state loaded before a subcommand
// runs.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"

	Config *config.Config
	Logger *zap.Logger
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "newsctl",
		Short: "newsctl - read and react to Cthulhu News from a terminal",
		Long: `newsctl visits a Cthulhu News server the way the web page does.

It keeps a visitor profile (identity plus the articles already reacted to
or commented on) and never sends the same reaction or comment twice.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return exitErrorf(ExitCommandError, "%w", err)
			}
			logCfg := cfg.Log
			if opts.Verbose {
				logCfg.Level = "debug"
			} else if logCfg.Level == "" || logCfg.Level == "info" {
				logCfg.Level = "warn"
			}
			logger, err := logging.New(logCfg)
			if err != nil {
				return exitErrorf(ExitCommandError, "%w", err)
			}
			opts.Config = cfg
			opts.Logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.Logger != nil {
				_ = opts.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "newsctl.yaml", "config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewReactCommand(opts))
	cmd.AddCommand(NewCommentCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
