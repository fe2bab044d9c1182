package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes a dependency search list and fallback-resolver
// options for the reloc subcommand, a file-shaped alternative to
// repeating the same flags for a repeatable investigation.
type Config struct {
	// Deps is an ordered list of shared-object paths to load and
	// relocate before the target, becoming its Dependency chain in
	// the caller-supplied order given.
	Deps []string `yaml:"deps"`

	// Fallback names the strategy used once Deps is exhausted:
	// "stub" (the libc/pthread Unicorn-hook registry), "script"
	// (a goja file named by ScriptPath), or "" (none; unresolved
	// symbols stay pending).
	Fallback   string `yaml:"fallback"`
	ScriptPath string `yaml:"script_path"`
}

// loadConfig reads path as YAML, or returns a zero Config if path is
// empty.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
