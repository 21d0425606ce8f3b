package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/runboard/internal/config/loader"
	"github.com/dshills/runboard/internal/process"
)

// DefaultFileNames are the file names Find looks for, in order.
var DefaultFileNames = []string{"runboard.toml", "runboard.yaml", "runboard.yml"}

// Config is the complete runboard configuration.
type Config struct {
	// Path is the file the configuration was loaded from.
	Path string

	// Title is shown in the dashboard header.
	Title string

	Supervisor SupervisorConfig
	Logging    LoggingConfig
	UI         UIConfig

	// Params seeds the runtime parameters substituted into commands.
	Params map[string]string

	// Scripts lists the runnable scripts in display order.
	Scripts []ScriptConfig
}

// SupervisorConfig holds process supervision settings.
type SupervisorConfig struct {
	GracePeriod   time.Duration
	KillTimeout   time.Duration
	DrainTimeout  time.Duration
	QueueCapacity int

	// Shell runs scripts with shell = true. Empty means $SHELL.
	Shell string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Encoding is console or json.
	Encoding string

	// File is the log file. Empty disables logging while the dashboard runs.
	File string
}

// UIConfig holds dashboard settings.
type UIConfig struct {
	// Scrollback is the number of lines kept per panel.
	Scrollback int

	// Counter is the parameter changed by the + and - keys.
	Counter string
}

// ScriptConfig describes one script.
type ScriptConfig struct {
	ID      string
	Name    string
	Command string
	Dir     string
	Env     map[string]string
	Shell   bool
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Title: "runboard",
		Supervisor: SupervisorConfig{
			GracePeriod:   process.DefaultGracePeriod,
			KillTimeout:   process.DefaultKillTimeout,
			DrainTimeout:  process.DefaultDrainTimeout,
			QueueCapacity: process.DefaultQueueCapacity,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		UI: UIConfig{
			Scrollback: 1000,
			Counter:    "episode",
		},
		Params: make(map[string]string),
	}
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	fs  loader.FileSystem
	env loader.Loader
}

// WithFileSystem reads the configuration file from fsys.
func WithFileSystem(fsys loader.FileSystem) LoadOption {
	return func(o *loadOptions) {
		o.fs = fsys
	}
}

// WithEnvLoader replaces the environment override source. Pass nil to
// disable environment overrides.
func WithEnvLoader(env loader.Loader) LoadOption {
	return func(o *loadOptions) {
		o.env = env
	}
}

// Load reads the configuration file at path, applies environment overrides
// and validates the result.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := loadOptions{
		fs:  loader.DefaultFS(),
		env: loader.NewEnvLoader(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	fileLoader, err := loader.ForPath(o.fs, path)
	if err != nil {
		return nil, err
	}

	data, err := fileLoader.Load()
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	if o.env != nil {
		overrides, err := o.env.Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		data = loader.DeepMerge(data, overrides)
	}

	cfg := Default()
	cfg.Path = path
	if err := decode(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.resolveDirs()

	if errs := Validate(cfg); errs.HasErrors() {
		return nil, fmt.Errorf("config %s: %w", path, errs)
	}

	return cfg, nil
}

// Find returns the first default configuration file present in dir.
func Find(dir string) (string, error) {
	for _, name := range DefaultFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w in %s (looked for %v)", ErrFileNotFound, dir, DefaultFileNames)
}

// resolveDirs makes relative script directories relative to the config file.
func (c *Config) resolveDirs() {
	base := filepath.Dir(c.Path)
	for i := range c.Scripts {
		dir := c.Scripts[i].Dir
		if dir != "" && !filepath.IsAbs(dir) {
			c.Scripts[i].Dir = filepath.Join(base, dir)
		}
	}
}

// Script returns the script with the given ID.
func (c *Config) Script(id string) (ScriptConfig, bool) {
	for _, s := range c.Scripts {
		if s.ID == id {
			return s, true
		}
	}
	return ScriptConfig{}, false
}

// Definitions converts the scripts to supervisor definitions.
func (c *Config) Definitions() []process.Definition {
	defs := make([]process.Definition, 0, len(c.Scripts))
	for _, s := range c.Scripts {
		defs = append(defs, s.Definition())
	}
	return defs
}

// Definition converts the script to a supervisor definition.
func (s ScriptConfig) Definition() process.Definition {
	return process.Definition{
		ID:      s.ID,
		Name:    s.Name,
		Command: s.Command,
		Dir:     s.Dir,
		Env:     s.Env,
		Shell:   s.Shell,
	}
}

// Options returns the supervisor options for these settings.
func (s SupervisorConfig) Options() []process.Option {
	return []process.Option{
		process.WithGracePeriod(s.GracePeriod),
		process.WithKillTimeout(s.KillTimeout),
		process.WithDrainTimeout(s.DrainTimeout),
		process.WithQueueCapacity(s.QueueCapacity),
		process.WithShell(s.Shell),
	}
}
