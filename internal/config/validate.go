package config

import (
	"fmt"
	"slices"
	"strings"
)

// LogLevels are the accepted logging.level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// LogEncodings are the accepted logging.encoding values.
var LogEncodings = []string{"console", "json"}

// Validate checks a config for errors and returns detailed validation errors.
func Validate(cfg *Config) ValidationErrors {
	var errs ValidationErrors

	if len(cfg.Scripts) == 0 {
		errs = append(errs, ValidationError{
			Field:   "scripts",
			Message: "at least one script is required",
		})
	}

	seen := make(map[string]int)
	for i, s := range cfg.Scripts {
		ctx := fmt.Sprintf("scripts[%d]", i)

		if strings.TrimSpace(s.ID) == "" {
			errs = append(errs, ValidationError{
				Field:   "id",
				Message: "script id is required",
				Context: ctx,
			})
		} else if first, dup := seen[s.ID]; dup {
			errs = append(errs, ValidationError{
				Field:   "id",
				Message: fmt.Sprintf("duplicate script id %q (first defined in scripts[%d])", s.ID, first),
				Context: ctx,
			})
		} else {
			seen[s.ID] = i
		}

		if strings.TrimSpace(s.Command) == "" {
			errs = append(errs, ValidationError{
				Field:   "command",
				Message: "command is required",
				Context: ctx,
			})
		}
	}

	sup := cfg.Supervisor
	for _, d := range []struct {
		field string
		ok    bool
	}{
		{"supervisor.grace_period", sup.GracePeriod > 0},
		{"supervisor.kill_timeout", sup.KillTimeout > 0},
		{"supervisor.drain_timeout", sup.DrainTimeout > 0},
		{"supervisor.queue_capacity", sup.QueueCapacity > 0},
		{"ui.scrollback", cfg.UI.Scrollback > 0},
	} {
		if !d.ok {
			errs = append(errs, ValidationError{
				Field:   d.field,
				Message: "must be positive",
			})
		}
	}

	if !slices.Contains(LogLevels, cfg.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q (want one of %s)", cfg.Logging.Level, strings.Join(LogLevels, ", ")),
		})
	}
	if !slices.Contains(LogEncodings, cfg.Logging.Encoding) {
		errs = append(errs, ValidationError{
			Field:   "logging.encoding",
			Message: fmt.Sprintf("unknown encoding %q (want one of %s)", cfg.Logging.Encoding, strings.Join(LogEncodings, ", ")),
		})
	}

	return errs
}
