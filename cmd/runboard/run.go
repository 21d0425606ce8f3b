package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/runboard/internal/app"
	"github.com/dshills/runboard/internal/process"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Run one script without the dashboard",
		Long: `Run one script and stream its output to stdout and stderr.

On SIGINT or SIGTERM the script is stopped gracefully. The exit code of the
script becomes the exit code of runboard.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			logger, err := app.NewStderrLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			sup := newSupervisor(cfg, logger)
			return runHeadless(ctx, sup, args[0], cfg.Params, os.Stdout, os.Stderr, logger)
		},
	}
}

// runHeadless starts scriptID and copies its output until it exits or ctx
// is done, in which case the script is stopped. A non-zero exit is returned
// as an *exitCodeError.
func runHeadless(ctx context.Context, sup *process.Supervisor, scriptID string, params map[string]string, stdout, stderr io.Writer, logger *zap.Logger) error {
	var mu sync.Mutex
	cancelLines := sup.OnLine(scriptID, func(line process.OutputLine) {
		mu.Lock()
		defer mu.Unlock()

		switch line.Kind {
		case process.LineText:
			out := stdout
			if line.Stream == process.StreamStderr {
				out = stderr
			}
			fmt.Fprintln(out, line.Text)
		case process.LineDropped:
			logger.Warn("output dropped", zap.Int("lines", line.Dropped))
		}
	})
	defer cancelLines()

	cancelStates := sup.OnStateChange(scriptID, func(change process.StateChange) {
		logger.Debug("state changed",
			zap.String("script", change.ScriptID),
			zap.Stringer("from", change.Old),
			zap.Stringer("to", change.New))
	})
	defer cancelStates()

	h, err := sup.Start(scriptID, params)
	if err != nil {
		return err
	}

	select {
	case <-h.Done():
	case <-ctx.Done():
		logger.Info("interrupted, stopping script", zap.String("script", scriptID))
		if err := sup.Stop(scriptID); err != nil {
			return err
		}
		<-h.Done()
	}

	snap := h.Snapshot()
	if snap.Err != nil {
		logger.Warn("script finished with error", zap.Error(snap.Err))
	}
	if snap.Exit != nil && !snap.Exit.Clean() {
		code := snap.Exit.Code
		if snap.Exit.Signaled {
			code = 1
			if ctx.Err() != nil {
				code = 130
			}
		}
		return &exitCodeError{code: code}
	}
	return nil
}
