package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/runboard/internal/app"
	"github.com/dshills/runboard/internal/command"
	"github.com/dshills/runboard/internal/config"
	"github.com/dshills/runboard/internal/process"
	"github.com/dshills/runboard/internal/renderer/backend"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	params     []string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "runboard",
		Short: "Launch and watch configured scripts from a terminal dashboard",
		Long: `runboard shows one panel per configured script with its live output.

Scripts are defined in runboard.toml (or runboard.yaml) in the current
directory. Command templates may reference parameters as ${name}; values
come from the [params] table and --param flags, and the counter parameter
can be bumped with + and - in the dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context(), flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to the configuration file (default: runboard.toml in the current directory)")
	pf.StringArrayVarP(&flags.params, "param", "p", nil, "set a parameter as name=value (repeatable)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newListCmd(flags), newRunCmd(flags), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "runboard %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}

// loadConfig loads the configuration and applies command-line overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	path := flags.configPath
	if path == "" {
		found, err := config.Find(".")
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.logLevel != "" {
		if _, err := app.ParseLogLevel(flags.logLevel); err != nil {
			return nil, err
		}
		cfg.Logging.Level = flags.logLevel
	}

	overrides, err := parseParams(flags.params)
	if err != nil {
		return nil, err
	}
	for name, value := range overrides {
		cfg.Params[name] = value
	}
	return cfg, nil
}

// parseParams parses name=value pairs. Values may contain '='.
func parseParams(pairs []string) (map[string]string, error) {
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q: want name=value", pair)
		}
		params[name] = value
	}
	return params, nil
}

func newSupervisor(cfg *config.Config, logger *zap.Logger) *process.Supervisor {
	opts := append(cfg.Supervisor.Options(), process.WithLogger(logger))
	return process.NewSupervisor(cfg.Definitions(), opts...)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runDashboard(parent context.Context, flags *globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger, err := app.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sup := newSupervisor(cfg, logger)

	term, err := backend.NewTerminal()
	if err != nil {
		return fmt.Errorf("failed to create terminal: %w", err)
	}

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithParameters(command.NewParameters(cfg.Params)),
	}
	if watcher, err := config.NewWatcher(cfg.Path, config.DefaultDebounce); err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else {
		opts = append(opts, app.WithWatcher(watcher))
	}

	dashboard, err := app.New(cfg, sup, term, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(parent)
	defer stop()

	return dashboard.Run(ctx)
}
