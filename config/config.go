// Package config loads and validates the node configuration.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configSubdir   = "config"
	configFileName = "provenance_config.json"

	// signerKeyEnvVar overrides the signing key from the environment so
	// the key never has to live in the config file.
	signerKeyEnvVar = "PROVENANCE_SIGNER_KEY"
)

//go:embed default_config.json
var defaultConfigJSON []byte

// Load reads the configuration from <home>/config/provenance_config.json,
// falling back to the embedded defaults when the file does not exist.
func Load(home string) (*Config, error) {
	raw := defaultConfigJSON

	path := filepath.Join(home, configSubdir, configFileName)
	if data, err := os.ReadFile(path); err == nil {
		raw = data
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.NodeHome == "" {
		cfg.NodeHome = home
	}
	if key := os.Getenv(signerKeyEnvVar); key != "" {
		cfg.SignerKeyHex = key
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefault writes the embedded default configuration to the node home
// so operators have a file to edit.
func WriteDefault(home string) (string, error) {
	dir := filepath.Join(home, configSubdir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(dir, configFileName)
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, defaultConfigJSON, 0o640); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

func validateConfig(cfg *Config) error {
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.LedgerRPCURL == "" {
		cfg.LedgerRPCURL = "ws://localhost:8546"
	}
	if cfg.LedgerChainID == 0 {
		cfg.LedgerChainID = 1337
	}
	if cfg.WriteTimeoutSeconds == 0 {
		cfg.WriteTimeoutSeconds = 120
	}
	if cfg.WriteTimeoutSeconds < 0 {
		return fmt.Errorf("write_timeout_seconds must be positive")
	}

	if cfg.ContentStoreAPIURL == "" {
		cfg.ContentStoreAPIURL = "http://127.0.0.1:5001/api/v0"
	}
	if cfg.ContentGatewayURL == "" {
		cfg.ContentGatewayURL = "http://127.0.0.1:8080"
	}

	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.APIPort < 0 || cfg.APIPort > 65535 {
		return fmt.Errorf("api_port must be a valid port number")
	}

	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = "provenance.db"
	}

	return nil
}

// DataDir returns the directory holding the node's database.
func (c *Config) DataDir() string {
	return filepath.Join(c.NodeHome, "data")
}
