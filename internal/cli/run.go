package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"snipd/internal/config"
	"snipd/internal/logging"
)

// RunOptions are the flags of the run command.
type RunOptions struct {
	SnippetsPath string
	StatusListen string
	NoJournal    bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the expansion daemon",
		Long: `Install the keyboard hook and expand abbreviations until interrupted.

The config file and the snippets file are watched; snippet edits and log
level changes apply without a restart. A default config is written on first
run when no config file exists.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runtime.GOOS != "windows" {
				return NewExitError(ExitCommandError, "snipd run needs the Windows keyboard hook")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, rootOpts, opts, SystemPlatform())
		},
	}

	cmd.Flags().StringVar(&opts.SnippetsPath, "snippets", "", "snippets file (overrides config)")
	cmd.Flags().StringVar(&opts.StatusListen, "status-listen", "", "status server address, e.g. 127.0.0.1:9477 (overrides config)")
	cmd.Flags().BoolVar(&opts.NoJournal, "no-journal", false, "do not record expansions")
	return cmd
}

// Apply writes the flag overrides onto cfg.
func (o *RunOptions) Apply(cfg *config.Config) {
	if o.SnippetsPath != "" {
		cfg.Snippets.Path = o.SnippetsPath
	}
	if o.StatusListen != "" {
		cfg.Status.Listen = o.StatusListen
	}
	if o.NoJournal {
		cfg.Journal.Enabled = false
	}
}

// loadConfig resolves the config path: the flag, then a file in a standard
// location, then the default path. With create set, a missing default file
// is written out. The returned loader is nil when no file backs the config.
func loadConfig(path string, create bool) (*config.Config, *config.Loader, error) {
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		path = config.ConfigPath()
		if create {
			if _, _, err := config.LoadOrCreate(path); err != nil {
				return nil, nil, err
			}
		}
	}

	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

func runDaemon(ctx context.Context, rootOpts *RootOptions, opts *RunOptions, platform Platform) error {
	cfg, loader, err := loadConfig(rootOpts.ConfigPath, true)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	overrides := func(c *config.Config) {
		opts.Apply(c)
		if rootOpts.Verbose {
			c.Logging.Level = "debug"
		}
	}
	cfg = cfg.Clone()
	overrides(cfg)
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return WrapExitError(ExitCommandError, "prepare directories", err)
	}

	lc, err := cfg.LoggingConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "logging config", err)
	}
	logger, err := logging.New(lc)
	if err != nil {
		return WrapExitError(ExitCommandError, "open log", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	logger.Info("config loaded", "path", loader.Path())

	d, err := NewDaemon(cfg, loader, logger, platform)
	if err != nil {
		return WrapExitError(ExitCommandError, "start daemon", err)
	}
	d.SetOverrides(overrides)
	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
