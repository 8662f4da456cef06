package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	Backend       struct {
		BaseURL        string `json:"base_url"`
		APIKey         string `json:"api_key"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	} `json:"backend"`
	Storage struct {
		Driver string `json:"driver"`
		Key    string `json:"key"`
	} `json:"storage"`
	Telegram struct {
		Token         string `json:"token"`
		AllowedUserID int64  `json:"allowed_user_id"`
	} `json:"telegram"`
	DevServer struct {
		Listen    string `json:"listen"`
		UploadDir string `json:"upload_dir"`
	} `json:"devserver"`
}

// DefaultPath returns ~/.docchat/config.json.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".docchat", "config.json")
}

// Default returns a Config populated with default values.
func Default() *Config {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".docchat"),
		LogLevel:      "info",
		MaxConcurrent: 2,
	}
	cfg.Backend.BaseURL = "http://127.0.0.1:5000"
	cfg.Backend.TimeoutSeconds = 60
	cfg.Storage.Driver = "file"
	cfg.Storage.Key = "chats_v1"
	cfg.DevServer.Listen = "127.0.0.1:5000"
	return cfg
}

// Load reads the config at path, writing defaults there first if the file
// does not exist. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	for _, o := range envOverrides {
		if v := os.Getenv(o.env); v != "" {
			o.apply(cfg, v)
		}
	}

	return cfg, nil
}

// envOverrides maps environment variables onto the config keys they replace.
var envOverrides = []struct {
	env   string
	key   string
	apply func(*Config, string)
}{
	{"DOCCHAT_BACKEND_URL", "backend.base_url", func(c *Config, v string) { c.Backend.BaseURL = v }},
	{"DOCCHAT_API_KEY", "backend.api_key", func(c *Config, v string) { c.Backend.APIKey = v }},
	{"DOCCHAT_DATA_DIR", "data_dir", func(c *Config, v string) { c.DataDir = v }},
	{"TELEGRAM_BOT_TOKEN", "telegram.token", func(c *Config, v string) { c.Telegram.Token = v }},
}

// ActiveEnvOverrides returns the config keys currently replaced by a set
// environment variable, mapped to that variable's name.
func ActiveEnvOverrides() map[string]string {
	out := make(map[string]string)
	for _, o := range envOverrides {
		if os.Getenv(o.env) != "" {
			out[o.key] = o.env
		}
	}
	return out
}

// Timeout returns the backend transport timeout.
func (c *Config) Timeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// UploadDir returns where the dev server keeps uploaded documents.
func (c *Config) UploadDir() string {
	if c.DevServer.UploadDir != "" {
		return c.DevServer.UploadDir
	}
	return filepath.Join(c.DataDir, "uploads")
}

// Level maps LogLevel onto a slog level. Unknown values are info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	m, err := ToMap(cfg)
	if err != nil {
		return err
	}
	return writeMap(path, m)
}

// ToMap converts cfg into its generic JSON map form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns every config value keyed by dot path, optionally with
// secrets masked.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads a single dot-path key from the config file at path.
func GetValue(path, key string) (any, error) {
	m, err := readMap(path)
	if err != nil {
		return nil, err
	}
	v, ok := Flatten(m)[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue sets a dot-path key in the config file at path. Values that parse
// as JSON (numbers, booleans) are stored typed; anything else is a string.
func SetValue(path, key, raw string) error {
	m, err := readMap(path)
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		v = raw
	}
	if _, isMap := v.(map[string]any); isMap {
		v = raw
	}

	known, err := ListValues(Default(), false)
	if err != nil {
		return err
	}
	if _, ok := known[key]; !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}

	flat := Flatten(m)
	flat[key] = v
	return writeMap(path, Unflatten(flat))
}

func readMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return m, nil
}

func writeMap(path string, m map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
