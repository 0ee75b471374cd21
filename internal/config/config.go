// Package config handles loading and merging configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Machine names.
const (
	MachineCloudFoundry = "cloudfoundry"
	MachineAdditive     = "additive"
)

// Freeze store kinds.
const (
	FreezeMemory = "memory"
	FreezeFile   = "file"
	FreezeNATS   = "nats"
)

// Config represents the sdm configuration.
type Config struct {
	Version       int              `yaml:"version"`
	Machine       string           `yaml:"machine"`
	LogLevel      string           `yaml:"log_level"`
	DefaultBranch string           `yaml:"default_branch"`
	Bots          []string         `yaml:"bots"`
	Seeds         []string         `yaml:"seeds"`
	Predicates    PredicatesConfig `yaml:"predicates"`
	Freeze        FreezeConfig     `yaml:"freeze"`
	NATS          NATSConfig       `yaml:"nats"`
	Metrics       MetricsConfig    `yaml:"metrics"`
	Sonar         SonarConfig      `yaml:"sonar"`
	Project       ProjectConfig    `yaml:"project"`
	Deploy        DeployConfig     `yaml:"deploy"`
}

// PredicatesConfig tunes predicate evaluation.
type PredicatesConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// FreezeConfig selects where the deployment-freeze state lives.
type FreezeConfig struct {
	Store  string `yaml:"store"`
	Path   string `yaml:"path,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`
}

// NATSConfig controls the NATS connection and subjects.
type NATSConfig struct {
	URL          string `yaml:"url"`
	PushSubject  string `yaml:"push_subject"`
	GoalsSubject string `yaml:"goals_subject"`
}

// MetricsConfig controls the metrics endpoint of the server.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// SonarConfig enables the SonarQube code inspection pack.
type SonarConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
}

// ProjectConfig tunes project inspection.
type ProjectConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// DeployConfig holds deployment target settings.
type DeployConfig struct {
	LocalBaseURL string             `yaml:"local_base_url,omitempty"`
	CloudFoundry CloudFoundryConfig `yaml:"cloudfoundry"`
}

// CloudFoundryConfig identifies the Cloud Foundry spaces deployed to.
type CloudFoundryConfig struct {
	API             string `yaml:"api"`
	Org             string `yaml:"org"`
	StagingSpace    string `yaml:"staging_space"`
	ProductionSpace string `yaml:"production_space"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version:       1,
		Machine:       MachineCloudFoundry,
		LogLevel:      "info",
		DefaultBranch: "main",
		Predicates: PredicatesConfig{
			Timeout: 10 * time.Second,
		},
		Freeze: FreezeConfig{
			Store:  FreezeFile,
			Path:   defaultFreezePath(),
			Bucket: "SDM_FREEZE",
		},
		NATS: NATSConfig{
			URL:          "nats://127.0.0.1:4222",
			PushSubject:  "sdm.push",
			GoalsSubject: "sdm.goals",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Project: ProjectConfig{
			CacheSize: 1024,
		},
		Deploy: DeployConfig{
			CloudFoundry: CloudFoundryConfig{
				API:             "api.run.pivotal.io",
				StagingSpace:    "staging",
				ProductionSpace: "production",
			},
		},
	}
}

// Load loads configuration. If local config exists, it is used exclusively.
// Otherwise, global config is used. No merging occurs between the two.
// SDM_* environment variables are applied last.
func Load() (*Config, error) {
	cfg := Default()

	localPath := LocalConfigPath()
	if localPath != "" {
		if _, err := os.Stat(localPath); err == nil {
			if err := cfg.loadFrom(localPath); err != nil {
				return nil, err
			}
			cfg.applyEnv()
			return cfg, cfg.Validate()
		}
	}

	globalPath := GlobalConfigPath()
	if globalPath != "" {
		if err := cfg.loadFrom(globalPath); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// LoadFile loads defaults overlaid with a single explicit file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFrom(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Machine {
	case MachineCloudFoundry, MachineAdditive:
	default:
		return fmt.Errorf("config: unknown machine %q", c.Machine)
	}
	switch c.Freeze.Store {
	case FreezeMemory, FreezeFile, FreezeNATS:
	default:
		return fmt.Errorf("config: unknown freeze store %q", c.Freeze.Store)
	}
	if c.Freeze.Store == FreezeFile && c.Freeze.Path == "" {
		return fmt.Errorf("config: freeze.path is required for the file store")
	}
	return nil
}

// loadFrom loads and merges a config file into the current config.
func (c *Config) loadFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	c.merge(&overlay)
	return nil
}

// merge applies overlay config onto the current config.
// Set scalar values override; lists are appended, not replaced.
func (c *Config) merge(overlay *Config) {
	if overlay.Version > 0 {
		c.Version = overlay.Version
	}
	c.Machine = override(c.Machine, overlay.Machine)
	c.LogLevel = override(c.LogLevel, overlay.LogLevel)
	c.DefaultBranch = override(c.DefaultBranch, overlay.DefaultBranch)
	c.Bots = appendUnique(c.Bots, overlay.Bots)
	c.Seeds = appendUnique(c.Seeds, overlay.Seeds)
	if overlay.Predicates.Timeout > 0 {
		c.Predicates.Timeout = overlay.Predicates.Timeout
	}
	c.Freeze.Store = override(c.Freeze.Store, overlay.Freeze.Store)
	c.Freeze.Path = override(c.Freeze.Path, overlay.Freeze.Path)
	c.Freeze.Bucket = override(c.Freeze.Bucket, overlay.Freeze.Bucket)
	c.NATS.URL = override(c.NATS.URL, overlay.NATS.URL)
	c.NATS.PushSubject = override(c.NATS.PushSubject, overlay.NATS.PushSubject)
	c.NATS.GoalsSubject = override(c.NATS.GoalsSubject, overlay.NATS.GoalsSubject)
	c.Metrics.Addr = override(c.Metrics.Addr, overlay.Metrics.Addr)
	if overlay.Sonar.Enabled {
		c.Sonar = overlay.Sonar
	}
	if overlay.Project.CacheSize > 0 {
		c.Project.CacheSize = overlay.Project.CacheSize
	}
	c.Deploy.LocalBaseURL = override(c.Deploy.LocalBaseURL, overlay.Deploy.LocalBaseURL)
	cf := &c.Deploy.CloudFoundry
	cf.API = override(cf.API, overlay.Deploy.CloudFoundry.API)
	cf.Org = override(cf.Org, overlay.Deploy.CloudFoundry.Org)
	cf.StagingSpace = override(cf.StagingSpace, overlay.Deploy.CloudFoundry.StagingSpace)
	cf.ProductionSpace = override(cf.ProductionSpace, overlay.Deploy.CloudFoundry.ProductionSpace)
}

// applyEnv overrides values from SDM_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("SDM_MACHINE"); v != "" {
		c.Machine = v
	}
	if v := os.Getenv("SDM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SDM_FREEZE_STORE"); v != "" {
		c.Freeze.Store = v
	}
	if v := os.Getenv("SDM_FREEZE_PATH"); v != "" {
		c.Freeze.Path = v
	}
	if v := os.Getenv("SDM_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("SDM_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("SDM_SONAR_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Sonar.Enabled = enabled
		}
	}
	if v := os.Getenv("SDM_BOTS"); v != "" {
		c.Bots = appendUnique(c.Bots, strings.Split(v, ","))
	}
}

func override(base, overlay string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func appendUnique(base, items []string) []string {
	seen := make(map[string]bool)
	for _, s := range base {
		seen[s] = true
	}
	result := base
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			result = append(result, s)
			seen[s] = true
		}
	}
	return result
}

func defaultFreezePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sdm", "freeze.yml")
	}
	return filepath.Join(home, ".config", "sdm", "freeze.yml")
}

// GlobalConfigPath returns the path to the global config file, or "" when
// the home directory is unknown.
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sdm", "config.yml")
}

// LocalConfigPath returns the path to the local config file, or "" when the
// working directory is unknown.
func LocalConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".sdm.yml")
}
