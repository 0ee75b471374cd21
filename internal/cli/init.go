// Package cli provides CLI command implementations.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adrianpk/sdm/internal/config"
)

// RunInit creates an sdm configuration file.
func RunInit(local bool, out io.Writer) error {
	configPath := config.GlobalConfigPath()
	if local {
		configPath = config.LocalConfigPath()
	}
	if configPath == "" {
		return fmt.Errorf("cannot locate config file (local: %t)", local)
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "Config already exists: %s\n", configPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}

	fmt.Fprintf(out, "Created config: %s\n", configPath)
	return nil
}

const defaultConfig = `version: 1

# cloudfoundry (tiered chain) or additive (contributors)
machine: cloudfoundry
log_level: info
default_branch: main

bots: []
seeds: []

predicates:
  timeout: 10s

freeze:
  # memory, file or nats
  store: file
  bucket: SDM_FREEZE

nats:
  url: nats://127.0.0.1:4222
  push_subject: sdm.push
  goals_subject: sdm.goals

metrics:
  addr: ":9090"

sonar:
  enabled: false
  url: ""

project:
  cache_size: 1024

deploy:
  local_base_url: http://localhost:8080
  cloudfoundry:
    api: api.run.pivotal.io
    org: ""
    staging_space: staging
    production_space: production
`
