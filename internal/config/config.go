// Package config loads folio's configuration from the environment and an
// optional config.yaml in the configuration directory.
//
// Every key reads the upper-cased environment variable of the same name
// (JOB_WORKER_COUNT for job_worker_count) and the environment wins over
// the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/folio/internal/generation"
	"github.com/mesh-intelligence/folio/internal/jobs"
	"github.com/mesh-intelligence/folio/internal/logging"
	"github.com/mesh-intelligence/folio/internal/paths"
	"github.com/mesh-intelligence/folio/internal/secrets"
	"github.com/mesh-intelligence/folio/pkg/types"
)

// Config keys.
const (
	KeyDataDir                  = "data_dir"
	KeyDatabaseURL              = "database_url"
	KeyJobWorkerCount           = "job_worker_count"
	KeyJobPollInterval          = "job_poll_interval"
	KeySecretsProvider          = "secrets_provider"
	KeySecretsFile              = "secrets_file"
	KeyVaultURL                 = "vault_url"
	KeyVaultToken               = "vault_token"
	KeyVaultMount               = "vault_mount"
	KeyAzureVaultURL            = "azure_vault_url"
	KeyDefaultLLM               = "default_llm"
	KeyGenerationRecursionLimit = "generation_recursion_limit"
	KeyLogLevel                 = "log_level"
	KeyLogFormat                = "log_format"
)

// Config is the resolved configuration.
type Config struct {
	DataDir                  string        `mapstructure:"data_dir"`
	DatabaseURL              string        `mapstructure:"database_url"`
	JobWorkerCount           int           `mapstructure:"job_worker_count"`
	JobPollInterval          time.Duration `mapstructure:"job_poll_interval"`
	SecretsProvider          string        `mapstructure:"secrets_provider"`
	SecretsFile              string        `mapstructure:"secrets_file"`
	VaultURL                 string        `mapstructure:"vault_url"`
	VaultToken               string        `mapstructure:"vault_token"`
	VaultMount               string        `mapstructure:"vault_mount"`
	AzureVaultURL            string        `mapstructure:"azure_vault_url"`
	DefaultLLM               string        `mapstructure:"default_llm"`
	GenerationRecursionLimit int           `mapstructure:"generation_recursion_limit"`
	LogLevel                 string        `mapstructure:"log_level"`
	LogFormat                string        `mapstructure:"log_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeyDatabaseURL, "")
	v.SetDefault(KeyJobWorkerCount, jobs.DefaultWorkers)
	v.SetDefault(KeyJobPollInterval, jobs.DefaultPollInterval)
	v.SetDefault(KeySecretsProvider, secrets.BackendLocal)
	v.SetDefault(KeySecretsFile, "")
	v.SetDefault(KeyVaultURL, "")
	v.SetDefault(KeyVaultToken, "")
	v.SetDefault(KeyVaultMount, "secret")
	v.SetDefault(KeyAzureVaultURL, "")
	v.SetDefault(KeyDefaultLLM, "")
	v.SetDefault(KeyGenerationRecursionLimit, generation.DefaultRecursionLimit)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, logging.FormatText)
}

// Load reads configDir/config.yaml when present, overlays the environment
// and resolves the data directory (dataDirFlag first). Paths left empty
// default into the data directory. The result is validated.
func Load(configDir, dataDirFlag string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if err := v.BindEnv(KeyDataDir, paths.EnvDataDir); err != nil {
		return nil, fmt.Errorf("bind %s: %w", KeyDataDir, err)
	}

	v.SetConfigName(strings.TrimSuffix(paths.ConfigFileName, ".yaml"))
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %v: %w", err, types.ErrValidation)
	}

	dataDir, err := paths.ResolveDataDir(dataDirFlag, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDir
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = paths.DatabaseURL(dataDir)
	}
	if cfg.SecretsFile == "" {
		cfg.SecretsFile = paths.SecretsFile(dataDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no safe fallback.
func (c *Config) Validate() error {
	var errs []error
	if c.JobWorkerCount < 1 {
		errs = append(errs, fmt.Errorf("%s must be >= 1, got %d", KeyJobWorkerCount, c.JobWorkerCount))
	}
	if c.JobPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyJobPollInterval))
	}
	if c.GenerationRecursionLimit < 1 {
		errs = append(errs, fmt.Errorf("%s must be >= 1", KeyGenerationRecursionLimit))
	}
	switch c.SecretsProvider {
	case secrets.BackendLocal:
		if c.SecretsFile == "" {
			errs = append(errs, fmt.Errorf("%s is required for %s secrets", KeySecretsFile, c.SecretsProvider))
		}
	case secrets.BackendVaultSelfHosted:
		if c.VaultURL == "" {
			errs = append(errs, fmt.Errorf("%s is required for %s secrets", KeyVaultURL, c.SecretsProvider))
		}
	case secrets.BackendVaultCloud:
		if c.AzureVaultURL == "" {
			errs = append(errs, fmt.Errorf("%s is required for %s secrets", KeyAzureVaultURL, c.SecretsProvider))
		}
	default:
		errs = append(errs, fmt.Errorf("%s %q is not one of %s, %s, %s", KeySecretsProvider, c.SecretsProvider,
			secrets.BackendLocal, secrets.BackendVaultSelfHosted, secrets.BackendVaultCloud))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("%s %q is not a log level", KeyLogLevel, c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("%s %q is not one of %s, %s", KeyLogFormat, c.LogFormat, logging.FormatText, logging.FormatJSON))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w: %w", errors.Join(errs...), types.ErrValidation)
	}
	return nil
}

// SecretsOptions returns the resolver options the configuration selects.
func (c *Config) SecretsOptions() secrets.Options {
	return secrets.Options{
		Backend:       c.SecretsProvider,
		File:          c.SecretsFile,
		VaultURL:      c.VaultURL,
		VaultToken:    c.VaultToken,
		VaultMount:    c.VaultMount,
		AzureVaultURL: c.AzureVaultURL,
	}
}

// fileConfig is the subset of settings folio init writes to config.yaml.
type fileConfig struct {
	DataDir         string `yaml:"data_dir,omitempty"`
	DatabaseURL     string `yaml:"database_url,omitempty"`
	JobWorkerCount  int    `yaml:"job_worker_count"`
	JobPollInterval string `yaml:"job_poll_interval"`
	SecretsProvider string `yaml:"secrets_provider"`
	LogLevel        string `yaml:"log_level"`
	LogFormat       string `yaml:"log_format"`
}

// WriteDefault writes config.yaml into configDir unless one exists. It
// reports whether the file was written.
func WriteDefault(configDir, dataDir string) (bool, error) {
	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(&fileConfig{
		DataDir:         dataDir,
		JobWorkerCount:  jobs.DefaultWorkers,
		JobPollInterval: jobs.DefaultPollInterval.String(),
		SecretsProvider: secrets.BackendLocal,
		LogLevel:        "info",
		LogFormat:       logging.FormatText,
	})
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
