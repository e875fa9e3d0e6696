package config

import (
	"fmt"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory. Fields missing from the
// file keep their default values.
func Load(configFs afero.Fs, path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	configContents, err := afero.ReadFile(configFs, filepath.Join(path, ConfigurationName))
	if err != nil {
		return nil, err
	}
	out := defaultConfig()
	if err := yaml.UnmarshalStrict(configContents, out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ConfigurationName, err)
	}
	return out, nil
}

// Resolve builds the effective configuration: the file at path, or the
// defaults if path is empty, then environment overrides, then validation.
func Resolve(configFs afero.Fs, path string) (*Configuration, error) {
	cfg := defaultConfig()
	if path != "" {
		var err error
		if cfg, err = Load(configFs, path); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields set in the environment under EnvPrefix.
func ApplyEnv(cfg *Configuration) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}
