// Package config loads the runboard configuration.
//
// A configuration file lists the scripts the dashboard can run together with
// supervisor, logging and UI settings. Sources are layered, higher layers
// overriding lower ones:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← RUNBOARD_* overrides
//	├─────────────────────────────┤
//	│  2. Config File             │  ← runboard.toml / runboard.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// Command line flags are applied by the caller on the returned Config.
//
// # Basic Usage
//
//	cfg, err := config.Load("runboard.toml")
//	if err != nil {
//	    return err
//	}
//	sup := process.NewSupervisor(cfg.Definitions(), cfg.Supervisor.Options()...)
//
// # File Format
//
//	title = "Aloha Console"
//
//	[supervisor]
//	grace_period = "3s"
//
//	[params]
//	episode = "1"
//
//	[[scripts]]
//	id      = "core"
//	command = "./mock_script.sh --episode ${episode}"
//
// The configuration is static for the lifetime of the process. Watcher only
// reports that the file changed on disk.
package config
