package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Wildcard registers a command for every action without its own entry.
const Wildcard = "*"

// ProcessConfig binds an action name to the command that carries it out.
type ProcessConfig struct {
	Action      string            `yaml:"action" json:"action"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile is the layout of an executors file.
//
//	executors:
//	  - action: connect
//	    command: ./bin/agent
//	    args: [connect]
type ConfigFile struct {
	Executors []ProcessConfig `yaml:"executors" json:"executors"`
}

// LoadRegistry reads an executors file (YAML or JSON) keyed by action name.
// A missing file yields an empty registry.
func LoadRegistry(path string) (map[string]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]ProcessConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read executors config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	registry := make(map[string]ProcessConfig, len(cfg.Executors))
	for i, e := range cfg.Executors {
		if e.Action == "" || e.Command == "" {
			return nil, fmt.Errorf("%s: executors[%d] needs both 'action' and 'command'", path, i)
		}
		if _, dup := registry[e.Action]; dup {
			return nil, fmt.Errorf("%s: action '%s' registered twice", path, e.Action)
		}
		registry[e.Action] = e
	}
	return registry, nil
}
