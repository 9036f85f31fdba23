// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

// Package config loads application configuration from a TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Storage backend identifiers.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
}

// ServerConfig configures the Ollama connection.
type ServerConfig struct {
	// URL of the Ollama server. EMBERCHAT_SERVER_URL overrides it.
	URL string `toml:"url"`

	// Model identifier sent with every request.
	Model string `toml:"model"`

	// TimeoutSeconds bounds a whole chat request.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// StorageConfig configures chat persistence.
type StorageConfig struct {
	// Backend selects the persistence implementation: "file" or "sqlite".
	Backend string `toml:"backend"`

	// Dir is the storage directory. Empty means ~/.emberchat/chats.
	Dir string `toml:"dir"`

	// MaxChats limits stored sessions; oldest are pruned (0 = unlimited).
	MaxChats int `toml:"max_chats"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:            "http://127.0.0.1:11434",
			Model:          "llama3.2",
			TimeoutSeconds: 120,
		},
		Storage: StorageConfig{
			Backend:  BackendFile,
			MaxChats: 0,
		},
	}
}

// DefaultPath returns the standard config file location,
// ~/.emberchat/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".emberchat", "config.toml"), nil
}

// Load reads the config at path, applying defaults for unset fields and the
// environment override. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if url := os.Getenv("EMBERCHAT_SERVER_URL"); url != "" {
		cfg.Server.URL = url
	}
	if model := os.Getenv("EMBERCHAT_MODEL"); model != "" {
		cfg.Server.Model = model
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (want %q or %q)",
			c.Storage.Backend, BackendFile, BackendSQLite)
	}
	if c.Server.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.Server.TimeoutSeconds)
	}
	return nil
}

// Timeout returns the chat request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// StorageDir returns the configured storage directory, falling back to
// ~/.emberchat/chats.
func (c *Config) StorageDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".emberchat", "chats"), nil
}
