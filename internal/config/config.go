package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Well-known filenames a worker drops into its project directory. The relay
// discovers a worker by walking up from the caller's directory until it finds
// SocketName.
const (
	SocketName = ".mcp-repl.sock"
	PIDName    = ".mcp-repl.pid"
)

type Config struct {
	SocketName    string        `yaml:"socket_name"`
	PIDName       string        `yaml:"pid_name"`
	SocketTimeout time.Duration `yaml:"socket_timeout"`
	DiscoveryTTL  time.Duration `yaml:"discovery_ttl"`
	MaxClients    int           `yaml:"max_clients"`
	HTTPPort      int           `yaml:"http_port"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
}

func Load() *Config {
	cfg := &Config{
		SocketName:    SocketName,
		PIDName:       PIDName,
		SocketTimeout: 30 * time.Second,
		DiscoveryTTL:  10 * time.Second,
		MaxClients:    10,
		HTTPPort:      3000,
		LogLevel:      "info",
		LogFormat:     "text",
	}

	if path, ok := configFilePath(); ok {
		// Overlay errors are non-fatal: a broken config file falls back
		// to defaults rather than keeping the relay from starting.
		_ = cfg.overlay(path)
	}

	return cfg
}

func configFilePath() (string, bool) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	path := filepath.Join(homeDir, ".mcprepl", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// fileConfig mirrors Config for the YAML overlay. Durations are written as
// strings ("30s", "1m") and parsed with time.ParseDuration.
type fileConfig struct {
	SocketName    string `yaml:"socket_name"`
	PIDName       string `yaml:"pid_name"`
	SocketTimeout string `yaml:"socket_timeout"`
	DiscoveryTTL  string `yaml:"discovery_ttl"`
	MaxClients    int    `yaml:"max_clients"`
	HTTPPort      int    `yaml:"http_port"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if fc.SocketName != "" {
		c.SocketName = fc.SocketName
	}
	if fc.PIDName != "" {
		c.PIDName = fc.PIDName
	}
	if fc.SocketTimeout != "" {
		if d, err := time.ParseDuration(fc.SocketTimeout); err == nil && d > 0 {
			c.SocketTimeout = d
		}
	}
	if fc.DiscoveryTTL != "" {
		if d, err := time.ParseDuration(fc.DiscoveryTTL); err == nil && d > 0 {
			c.DiscoveryTTL = d
		}
	}
	if fc.MaxClients > 0 {
		c.MaxClients = fc.MaxClients
	}
	if fc.HTTPPort > 0 {
		c.HTTPPort = fc.HTTPPort
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		c.LogFormat = fc.LogFormat
	}
	return nil
}

func (c *Config) EnsureDirectories() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(homeDir, ".mcprepl"), 0700)
}
