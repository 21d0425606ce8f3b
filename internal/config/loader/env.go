package loader

import (
	"os"
	"strings"
)

// EnvLoader loads configuration from environment variables.
//
// Values are returned as strings; the config package converts them to the
// type of the setting they override.
type EnvLoader struct {
	mapping map[string]string // Env var -> config path
	lookup  func(string) (string, bool)
}

// NewEnvLoader creates a loader with the default runboard mappings.
func NewEnvLoader() *EnvLoader {
	return NewEnvLoaderWithMapping(DefaultEnvMapping())
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
func NewEnvLoaderWithMapping(mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		mapping: mapping,
		lookup:  os.LookupEnv,
	}
}

// DefaultEnvMapping returns the environment variables runboard honors.
func DefaultEnvMapping() map[string]string {
	return map[string]string{
		"RUNBOARD_LOG_LEVEL":      "logging.level",
		"RUNBOARD_LOG_FILE":       "logging.file",
		"RUNBOARD_GRACE_PERIOD":   "supervisor.grace_period",
		"RUNBOARD_KILL_TIMEOUT":   "supervisor.kill_timeout",
		"RUNBOARD_DRAIN_TIMEOUT":  "supervisor.drain_timeout",
		"RUNBOARD_QUEUE_CAPACITY": "supervisor.queue_capacity",
		"RUNBOARD_SCROLLBACK":     "ui.scrollback",
	}
}

// WithLookup replaces the environment lookup function. Used in tests.
func (l *EnvLoader) WithLookup(lookup func(string) (string, bool)) *EnvLoader {
	l.lookup = lookup
	return l
}

// Load reads the mapped environment variables and returns a configuration map.
// Empty values are treated as set.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)
	for env, path := range l.mapping {
		if val, ok := l.lookup(env); ok {
			setByPath(config, path, val)
		}
	}
	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}

	current[parts[len(parts)-1]] = value
}
