package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// config is the optional YAML configuration file.
type config struct {
	// Delimiter separates script statements. Default ";".
	Delimiter string `yaml:"delimiter"`
	// MacroDepthLimit bounds recursive macro expansion. 0 keeps the default.
	MacroDepthLimit int `yaml:"macroDepthLimit"`
}

// loadConfig reads the file named by --config, or returns defaults when the
// flag is unset.
func loadConfig() (config, error) {
	var cfg config
	if flagConfig == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(flagConfig)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", flagConfig, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", flagConfig, err)
	}
	if len(cfg.Delimiter) > 1 {
		return cfg, fmt.Errorf("config %s: delimiter must be a single character", flagConfig)
	}
	return cfg, nil
}

func (c config) delimiterByte(def byte) byte {
	if c.Delimiter == "" {
		return def
	}
	return c.Delimiter[0]
}
