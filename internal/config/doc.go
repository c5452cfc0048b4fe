// Package config provides the configuration for termtree.
//
// Configuration is resolved in layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← Highest priority (applied by main)
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← TERMTREE_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← config.toml / config.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// # Sub-packages
//
//   - loader: TOML, YAML and environment sources as nested maps
//   - watcher: fsnotify-based file watching for live reload
//
// # Basic Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return err
//	}
//	out := cfg.Output.Resolve(os.Stdout)
//
// # Environment Variables
//
// Every setting can be overridden as TERMTREE_<SECTION>_<SETTING>, e.g.
// TERMTREE_OUTPUT_RESET_SEQUENCE for output.resetSequence. The short forms
// TERMTREE_MODE, TERMTREE_LOG_LEVEL, TERMTREE_LOG_FILE and TERMTREE_SCRIPT
// are also recognized.
package config
