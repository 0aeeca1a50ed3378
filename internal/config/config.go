// Package config loads the optional .omjitrc.yaml file that supplies
// defaults for the CLI flags in cmd/omjit. CLI flags always win over
// file configuration.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of .omjitrc.yaml.
type Config struct {
	DumpFlowGraph bool   `yaml:"dump_flow_graph"`
	Disassemble   bool   `yaml:"disassemble"`
	LogScopes     string `yaml:"log_scopes"`
}

// Load reads and parses path. A missing file is not an error: it
// returns the zero Config, matching the "defaults unless overridden"
// contract the CLI expects.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
