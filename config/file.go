package config

import (
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const appName = "scdl"

// ClientConfig holds the command-line client settings
type ClientConfig struct {
	Endpoint       string        `yaml:"endpoint,omitempty"`
	OutputDir      string        `yaml:"outputDir,omitempty"`
	Format         string        `yaml:"format,omitempty"`
	Quality        string        `yaml:"quality,omitempty"`
	HistoryPath    string        `yaml:"historyPath,omitempty"`
	PollInterval   time.Duration `yaml:"pollInterval,omitempty"`
	StaggerDelay   time.Duration `yaml:"staggerDelay,omitempty"`
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty"`
}

// DefaultClientConfig returns the settings used when no file overrides them
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:       "http://localhost:5000",
		OutputDir:      ".",
		Format:         "mp3",
		Quality:        "192",
		HistoryPath:    filepath.Join(xdg.DataHome, appName, "history.db"),
		PollInterval:   time.Second,
		StaggerDelay:   500 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
	}
}

// ClientConfigPath returns $XDG_CONFIG_HOME/scdl/config.yaml
func ClientConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// GetClientConfig reads the client configuration file at its default path
func GetClientConfig() (*ClientConfig, error) {
	return LoadClientConfig(ClientConfigPath())
}

// LoadClientConfig reads the configuration at path. A missing or empty file
// yields the defaults; fields left out of the file keep their default.
func LoadClientConfig(path string) (*ClientConfig, error) {
	defaults := DefaultClientConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &defaults, nil
		}
		return nil, err
	}

	if len(b) == 0 {
		return &defaults, nil
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	return &ClientConfig{
		Endpoint:       zeroOr(cfg.Endpoint, defaults.Endpoint),
		OutputDir:      zeroOr(cfg.OutputDir, defaults.OutputDir),
		Format:         zeroOr(cfg.Format, defaults.Format),
		Quality:        zeroOr(cfg.Quality, defaults.Quality),
		HistoryPath:    zeroOr(cfg.HistoryPath, defaults.HistoryPath),
		PollInterval:   zeroOr(cfg.PollInterval, defaults.PollInterval),
		StaggerDelay:   zeroOr(cfg.StaggerDelay, defaults.StaggerDelay),
		RequestTimeout: zeroOr(cfg.RequestTimeout, defaults.RequestTimeout),
	}, nil
}

// zeroOr returns def if v is the zero value for its type.
func zeroOr[T any](v, def T) T {
	if reflect.ValueOf(v).IsZero() {
		return def
	}

	return v
}
