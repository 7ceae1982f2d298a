package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// load reads a YAML config file into out, expanding ${VAR} environment variables.
func load(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// LoadClient reads a client config file.
func LoadClient(path string) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClientAndValidate loads a client config, applies defaults, and validates.
func LoadClientAndValidate(path string) (*ClientConfig, error) {
	cfg, err := LoadClient(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadServer reads a server config file.
func LoadServer(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadServerWithDefaults loads a server config and applies default values.
func LoadServerWithDefaults(path string) (*ServerConfig, error) {
	cfg, err := LoadServer(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// LoadServerAndValidate loads a server config, applies defaults, and validates.
func LoadServerAndValidate(path string) (*ServerConfig, error) {
	cfg, err := LoadServerWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
