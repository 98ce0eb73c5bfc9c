package appconfig

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	Session       SessionConfig `mapstructure:"session" yaml:"session"`
	Backend       BackendConfig `mapstructure:"backend" yaml:"backend"`
	Dump          DumpConfig    `mapstructure:"dump" yaml:"dump"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Backend types.
const (
	BackendProcess = "process"
	BackendSocket  = "socket"
	BackendEnv     = "env"
)

// SessionConfig controls the scripting session.
type SessionConfig struct {
	Name                    string   `mapstructure:"name" yaml:"name"`
	Origin                  int      `mapstructure:"origin" yaml:"origin"`
	TimeoutSeconds          int      `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	StartTimeoutSeconds     int      `mapstructure:"start_timeout_seconds" yaml:"start_timeout_seconds"`
	HandshakeTimeoutSeconds int      `mapstructure:"handshake_timeout_seconds" yaml:"handshake_timeout_seconds"`
	HistorySize             int      `mapstructure:"history_size" yaml:"history_size"`
	ExceptionMode           bool     `mapstructure:"exception_mode" yaml:"exception_mode"`
	Require                 string   `mapstructure:"require" yaml:"require"`
	ConnectFlags            []string `mapstructure:"connect_flags" yaml:"connect_flags"`
}

// BackendConfig selects and configures the emulator transport.
type BackendConfig struct {
	Type            string            `mapstructure:"type" yaml:"type"`
	Binary          string            `mapstructure:"binary" yaml:"binary"`
	Args            []string          `mapstructure:"args" yaml:"args"`
	Env             map[string]string `mapstructure:"env" yaml:"env"`
	Host            string            `mapstructure:"host" yaml:"host"`
	Port            int               `mapstructure:"port" yaml:"port"`
	RetryIntervalMS int               `mapstructure:"retry_interval_ms" yaml:"retry_interval_ms"`
}

// DumpConfig controls screen dump decoding.
type DumpConfig struct {
	Charset string `mapstructure:"charset" yaml:"charset"`
}

// Timeout returns the per-command timeout.
func (c SessionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StartTimeout returns the backend acquisition timeout.
func (c SessionConfig) StartTimeout() time.Duration {
	return time.Duration(c.StartTimeoutSeconds) * time.Second
}

// HandshakeTimeout returns the priming query timeout.
func (c SessionConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutSeconds) * time.Second
}

// RetryInterval returns the socket connect retry interval.
func (c BackendConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMS) * time.Millisecond
}

// EnvList renders Env as KEY=VALUE entries in a stable order. Keys are
// upper-cased because the loader folds map keys to lower case.
func (c BackendConfig) EnvList() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.ToUpper(k)+"="+c.Env[k])
	}
	return out
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Session: SessionConfig{
			Name:                    "",
			Origin:                  0,
			TimeoutSeconds:          10,
			StartTimeoutSeconds:     30,
			HandshakeTimeoutSeconds: 5,
			HistorySize:             100,
			ExceptionMode:           true,
			Require:                 "none",
			ConnectFlags:            []string{},
		},
		Backend: BackendConfig{
			Type:            BackendProcess,
			Binary:          "s3270",
			Args:            []string{"-utf8"},
			Env:             map[string]string{},
			Host:            "127.0.0.1",
			Port:            0,
			RetryIntervalMS: 250,
		},
		Dump: DumpConfig{
			Charset: "utf-8",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".x3270script", "config.yaml"), nil
}
