// Package config loads voxnote settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultEndpoint       = "https://api.openai.com/v1"
	DefaultModel          = "whisper-1"
	DefaultStopTimeout    = 5 * time.Second
	DefaultWarmUp         = 300 * time.Millisecond
	DefaultRequestTimeout = 2 * time.Minute
	DefaultSilenceDBFS    = -65.0
)

type Config struct {
	APIKey         string
	Endpoint       string
	Model          string
	Language       string
	StoreDir       string
	Backend        string
	Input          string
	InputFormat    string
	StopTimeout    time.Duration
	WarmUp         time.Duration
	RequestTimeout time.Duration
	SilenceGate    bool
	SilenceDBFS    float64
}

// Duration decodes TOML strings such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

type fileConfig struct {
	APIKey         string   `toml:"api_key"`
	Endpoint       string   `toml:"endpoint"`
	Model          string   `toml:"model"`
	Language       string   `toml:"language"`
	StoreDir       string   `toml:"store_dir"`
	Backend        string   `toml:"backend"`
	Input          string   `toml:"input"`
	InputFormat    string   `toml:"input_format"`
	StopTimeout    Duration `toml:"stop_timeout"`
	WarmUp         Duration `toml:"warmup"`
	RequestTimeout Duration `toml:"request_timeout"`
	SilenceGate    *bool    `toml:"silence_gate"`
	SilenceDBFS    *float64 `toml:"silence_threshold_dbfs"`
}

func Default() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		Model:          DefaultModel,
		Backend:        "auto",
		StopTimeout:    DefaultStopTimeout,
		WarmUp:         DefaultWarmUp,
		RequestTimeout: DefaultRequestTimeout,
		SilenceGate:    true,
		SilenceDBFS:    DefaultSilenceDBFS,
	}
}

// Load reads path when it exists and applies environment overrides on top.
// A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		var fc fileConfig
		_, err := toml.DecodeFile(path, &fc)
		switch {
		case err == nil:
			fc.apply(&cfg)
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func (fc fileConfig) apply(cfg *Config) {
	if fc.APIKey != "" {
		cfg.APIKey = fc.APIKey
	}
	if fc.Endpoint != "" {
		cfg.Endpoint = fc.Endpoint
	}
	if fc.Model != "" {
		cfg.Model = fc.Model
	}
	if fc.Language != "" {
		cfg.Language = fc.Language
	}
	if fc.StoreDir != "" {
		cfg.StoreDir = expandTilde(fc.StoreDir)
	}
	if fc.Backend != "" {
		cfg.Backend = fc.Backend
	}
	if fc.Input != "" {
		cfg.Input = fc.Input
	}
	if fc.InputFormat != "" {
		cfg.InputFormat = fc.InputFormat
	}
	if fc.StopTimeout.Duration > 0 {
		cfg.StopTimeout = fc.StopTimeout.Duration
	}
	if fc.WarmUp.Duration > 0 {
		cfg.WarmUp = fc.WarmUp.Duration
	}
	if fc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.SilenceGate != nil {
		cfg.SilenceGate = *fc.SilenceGate
	}
	if fc.SilenceDBFS != nil {
		cfg.SilenceDBFS = *fc.SilenceDBFS
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("VOXNOTE_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("VOXNOTE_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("VOXNOTE_STORE_DIR"); v != "" {
		cfg.StoreDir = expandTilde(v)
	}
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
