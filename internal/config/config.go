// Package config provides configuration management for the fleet orchestrator.
// It supports loading configuration from environment variables, a YAML config
// file, and built-in defaults, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds every configuration section the orchestrator needs to run.
type Config struct {
	RepoPath      string        `mapstructure:"repoPath" yaml:"repo_path"`
	MaxWorkers    int           `mapstructure:"maxWorkers" yaml:"max_workers"`
	DBPath        string        `mapstructure:"dbPath" yaml:"db_path"`
	ProgressFile  string        `mapstructure:"progressFile" yaml:"progress_file"`
	AgentCommand  string        `mapstructure:"agentCommand" yaml:"agent_command"`
	Server        ServerConfig  `mapstructure:"server" yaml:"server"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP/WebSocket server configuration.
type ServerConfig struct {
	Port         int `mapstructure:"port" yaml:"port"`
	ReadTimeout  int `mapstructure:"readTimeout" yaml:"read_timeout"`   // seconds
	WriteTimeout int `mapstructure:"writeTimeout" yaml:"write_timeout"` // seconds
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	OutputPath string `mapstructure:"outputPath" yaml:"output_path"`
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("repoPath", ".")
	v.SetDefault("maxWorkers", 5)
	v.SetDefault("dbPath", "ccboss.db")
	v.SetDefault("progressFile", "PROGRESS.md")
	v.SetDefault("agentCommand", "claude")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

func detectDefaultLogFormat() string {
	if env := os.Getenv("CCBOSS_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// CLIOverrides carries the subset of configuration the CLI accepts as flags,
// mirroring the external collaborator's own flag surface (--port, --workers,
// --repo, --db, --config).
type CLIOverrides struct {
	Port         int
	MaxWorkers   int
	RepoPath     string
	DBPath       string
	ConfigPath   string
}

// Load reads configuration from environment variables (prefix CCBOSS_), an
// optional config.yaml, and defaults, in that order of increasing precedence
// for env over file over defaults. CLI overrides, if any field is non-zero,
// win over all three — mirroring the external collaborator's own
// Config.from_cli precedence (CLI flags beat file beat built-in defaults).
func Load(overrides CLIOverrides) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CCBOSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if overrides.ConfigPath != "" {
		v.SetConfigFile(overrides.ConfigPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ccboss/")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyCLIOverrides(&cfg, overrides)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func applyCLIOverrides(cfg *Config, o CLIOverrides) {
	if o.Port != 0 {
		cfg.Server.Port = o.Port
	}
	if o.MaxWorkers != 0 {
		cfg.MaxWorkers = o.MaxWorkers
	}
	if o.RepoPath != "" {
		cfg.RepoPath = o.RepoPath
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
}

// LoadYAMLFile parses a standalone YAML config file directly, without going
// through viper or the environment. This mirrors the external collaborator's
// own Config.load classmethod, used when a bare file (not an env-merged
// service config) is all that's wanted — e.g. a one-off CLI invocation.
func LoadYAMLFile(path string) (*Config, error) {
	cfg := &Config{
		RepoPath:     ".",
		MaxWorkers:   5,
		DBPath:       "ccboss.db",
		ProgressFile: "PROGRESS.md",
		AgentCommand: "claude",
	}
	cfg.Server.Port = 8080
	cfg.Logging.Level = "info"
	cfg.Logging.Format = detectDefaultLogFormat()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// validate checks that required configuration fields are sane, returning a
// ConfigError-class error (caller is expected to treat it as fatal).
func validate(cfg *Config) error {
	var errs []string

	if cfg.RepoPath == "" {
		errs = append(errs, "repoPath must not be empty")
	}
	if cfg.MaxWorkers <= 0 {
		errs = append(errs, "maxWorkers must be positive")
	}
	if cfg.DBPath == "" {
		errs = append(errs, "dbPath must not be empty")
	}
	if cfg.AgentCommand == "" {
		errs = append(errs, "agentCommand must not be empty")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text, console")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
