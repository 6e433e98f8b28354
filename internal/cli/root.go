// Package cli implements the workhub command line.
package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/workhub/internal/credential"
	"github.com/nhle/workhub/internal/logger"
	"github.com/nhle/workhub/internal/model"
)

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        *model.AppConfig
}

// NewRootCommand builds the workhub command tree. Running it without a
// subcommand opens the interactive notification center.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "workhub",
		Short:         "Work Hub notifications in the terminal",
		Long:          `workhub keeps a live, deduplicated view of your Work Hub notifications and shares sign-in state and unread counts with every other running instance.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", model.DefaultConfigPath(), "Path to the YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newTUICommand(opts),
		newWatchCommand(opts),
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newListCommand(opts),
		newReadCommand(opts),
	)

	return root
}

// load reads the configuration and installs the logger. Interactive
// commands move stderr logging into the state directory.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := model.LoadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logger.Level = o.logLevel
	}
	if interactive(cmd) && strings.EqualFold(cfg.Logger.OutputPath, "stderr") {
		cfg.Logger.OutputPath = filepath.Join(model.DefaultStateDir(), "workhub.log")
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.cfg = cfg
	return nil
}

func interactive(cmd *cobra.Command) bool {
	return cmd.Name() == "workhub" || cmd.Name() == "tui"
}

// token returns the stored API token, or "" when none is stored.
func token() (string, error) {
	tok, err := credential.Token()
	if errors.Is(err, credential.ErrNotFound) {
		return "", nil
	}
	return tok, err
}
