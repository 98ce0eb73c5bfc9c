package appconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	path, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("session.name", cfg.Session.Name)
	v.SetDefault("session.origin", cfg.Session.Origin)
	v.SetDefault("session.timeout_seconds", cfg.Session.TimeoutSeconds)
	v.SetDefault("session.start_timeout_seconds", cfg.Session.StartTimeoutSeconds)
	v.SetDefault("session.handshake_timeout_seconds", cfg.Session.HandshakeTimeoutSeconds)
	v.SetDefault("session.history_size", cfg.Session.HistorySize)
	v.SetDefault("session.exception_mode", cfg.Session.ExceptionMode)
	v.SetDefault("session.require", cfg.Session.Require)
	v.SetDefault("session.connect_flags", cfg.Session.ConnectFlags)
	v.SetDefault("backend.type", cfg.Backend.Type)
	v.SetDefault("backend.binary", cfg.Backend.Binary)
	v.SetDefault("backend.args", cfg.Backend.Args)
	v.SetDefault("backend.env", cfg.Backend.Env)
	v.SetDefault("backend.host", cfg.Backend.Host)
	v.SetDefault("backend.port", cfg.Backend.Port)
	v.SetDefault("backend.retry_interval_ms", cfg.Backend.RetryIntervalMS)
	v.SetDefault("dump.charset", cfg.Dump.Charset)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg, processEnv)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enum and range settings.
func Validate(cfg Config) error {
	if cfg.Session.Origin != 0 && cfg.Session.Origin != 1 {
		return fmt.Errorf("session.origin must be 0 or 1, got %d", cfg.Session.Origin)
	}
	switch strings.ToLower(cfg.Session.Require) {
	case "", "none", "connected", "3270":
	default:
		return fmt.Errorf("unsupported session.require %q", cfg.Session.Require)
	}
	if cfg.Session.TimeoutSeconds < 0 || cfg.Session.StartTimeoutSeconds < 0 || cfg.Session.HandshakeTimeoutSeconds < 0 {
		return fmt.Errorf("session timeouts must not be negative")
	}
	if cfg.Session.HistorySize < 0 {
		return fmt.Errorf("session.history_size must not be negative")
	}
	switch cfg.Backend.Type {
	case BackendProcess:
		if strings.TrimSpace(cfg.Backend.Binary) == "" {
			return fmt.Errorf("backend.binary is required for backend.type %q", BackendProcess)
		}
	case BackendSocket:
		if cfg.Backend.Port <= 0 || cfg.Backend.Port > 65535 {
			return fmt.Errorf("backend.port must be in 1..65535 for backend.type %q", BackendSocket)
		}
	case BackendEnv:
	default:
		return fmt.Errorf("unsupported backend.type %q", cfg.Backend.Type)
	}
	return nil
}

// envLookup resolves a variable referenced from the config file.
type envLookup func(key string) (string, bool)

// processEnv reads the process environment. UID and GID are synthesized
// when unset so backend.args can name per-user trace files.
func processEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return strconv.Itoa(os.Getuid()), true
	case "GID":
		return strconv.Itoa(os.Getgid()), true
	}
	return "", false
}

// expand substitutes $VAR and ${VAR}. Unknown variables are kept as $VAR
// so the emulator's own shell-style arguments survive.
func (lookup envLookup) expand(value string) string {
	if !strings.ContainsRune(value, '$') {
		return value
	}
	return os.Expand(value, func(key string) string {
		if val, ok := lookup(key); ok {
			return val
		}
		return "$" + key
	})
}

// expandConfigEnv expands the backend settings that name paths or are
// handed to the emulator process. Env keys are left alone.
func expandConfigEnv(cfg *Config, lookup envLookup) {
	cfg.Backend.Binary = lookup.expand(cfg.Backend.Binary)
	for i := range cfg.Backend.Args {
		cfg.Backend.Args[i] = lookup.expand(cfg.Backend.Args[i])
	}
	for key, val := range cfg.Backend.Env {
		cfg.Backend.Env[key] = lookup.expand(val)
	}
}

// ErrConfigExists is returned by WriteDefault when it may not overwrite.
var ErrConfigExists = errors.New("config already exists")

const configHeader = "# x3270script configuration.\n# $VAR references in backend.binary, backend.args and backend.env values are expanded.\n"

// WriteDefault writes the default config to path, or to DefaultConfigPath
// when path is empty, and returns the path written.
func WriteDefault(path string, overwrite bool) (string, error) {
	path, err := resolvePath(path)
	if err != nil {
		return "", err
	}
	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}
	var body bytes.Buffer
	body.WriteString(configHeader)
	enc := yaml.NewEncoder(&body)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("encode default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%w at %s; use --force to replace it", ErrConfigExists, path)
	}
	if err != nil {
		return "", err
	}
	if _, err := f.Write(body.Bytes()); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultConfigPath()
}
