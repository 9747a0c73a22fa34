package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces the environment overrides, e.g. MEDMODELD_ADDR.
const EnvPrefix = "MEDMODELD_"

// Config holds runtime parameters for the daemon and the CLI.
// Zero values mean "unspecified"; Default and Resolve fill them.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr" env:"ADDR"`
	OllamaURL   string `json:"ollama_url" yaml:"ollama_url" toml:"ollama_url" env:"OLLAMA_URL"`
	OllamaBin   string `json:"ollama_bin" yaml:"ollama_bin" toml:"ollama_bin" env:"OLLAMA_BIN"`
	WorkDir     string `json:"work_dir" yaml:"work_dir" toml:"work_dir" env:"WORK_DIR"`
	CatalogFile string `json:"catalog_file" yaml:"catalog_file" toml:"catalog_file" env:"CATALOG_FILE"`

	LogLevel   string `json:"log_level" yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`
	LogFormat  string `json:"log_format" yaml:"log_format" toml:"log_format" env:"LOG_FORMAT"`
	RequestLog string `json:"request_log" yaml:"request_log" toml:"request_log" env:"REQUEST_LOG"`

	ProbeTimeoutSec    int `json:"probe_timeout_sec" yaml:"probe_timeout_sec" toml:"probe_timeout_sec" env:"PROBE_TIMEOUT_SEC"`
	TextTimeoutSec     int `json:"text_timeout_sec" yaml:"text_timeout_sec" toml:"text_timeout_sec" env:"TEXT_TIMEOUT_SEC"`
	VisionTimeoutSec   int `json:"vision_timeout_sec" yaml:"vision_timeout_sec" toml:"vision_timeout_sec" env:"VISION_TIMEOUT_SEC"`
	PullTimeoutSec     int `json:"pull_timeout_sec" yaml:"pull_timeout_sec" toml:"pull_timeout_sec" env:"PULL_TIMEOUT_SEC"`
	CreateTimeoutSec   int `json:"create_timeout_sec" yaml:"create_timeout_sec" toml:"create_timeout_sec" env:"CREATE_TIMEOUT_SEC"`
	StartTimeoutSec    int `json:"start_timeout_sec" yaml:"start_timeout_sec" toml:"start_timeout_sec" env:"START_TIMEOUT_SEC"`
	ProviderTimeoutSec int `json:"provider_timeout_sec" yaml:"provider_timeout_sec" toml:"provider_timeout_sec" env:"PROVIDER_TIMEOUT_SEC"`

	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	JWTSecret    string   `json:"jwt_secret" yaml:"jwt_secret" toml:"jwt_secret" env:"JWT_SECRET"`

	OpenAIKey    string `json:"openai_api_key" yaml:"openai_api_key" toml:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIURL    string `json:"openai_base_url" yaml:"openai_base_url" toml:"openai_base_url" env:"OPENAI_BASE_URL"`
	AnthropicKey string `json:"anthropic_api_key" yaml:"anthropic_api_key" toml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	AnthropicURL string `json:"anthropic_base_url" yaml:"anthropic_base_url" toml:"anthropic_base_url" env:"ANTHROPIC_BASE_URL"`
	GoogleKey    string `json:"google_api_key" yaml:"google_api_key" toml:"google_api_key" env:"GOOGLE_API_KEY"`
	GoogleURL    string `json:"google_base_url" yaml:"google_base_url" toml:"google_base_url" env:"GOOGLE_BASE_URL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:               ":8080",
		OllamaURL:          "http://127.0.0.1:11434",
		OllamaBin:          "ollama",
		WorkDir:            filepath.Join(os.TempDir(), "medmodeld"),
		LogLevel:           "info",
		LogFormat:          "console",
		RequestLog:         "info",
		ProbeTimeoutSec:    5,
		TextTimeoutSec:     60,
		VisionTimeoutSec:   120,
		PullTimeoutSec:     30 * 60,
		CreateTimeoutSec:   10 * 60,
		StartTimeoutSec:    15,
		ProviderTimeoutSec: 10,
		MaxBodyBytes:       20 << 20,
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	err := decodeFile(path, &cfg)
	return cfg, err
}

// decodeFile overlays the file at path onto cfg; keys absent from the file keep their value.
func decodeFile(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
	return nil
}

// wellKnownEnv are the unprefixed variables other tools already use for the same settings.
type wellKnownEnv struct {
	OllamaURL    string `env:"OLLAMA_URL"`
	OpenAIKey    string `env:"OPENAI_API_KEY"`
	AnthropicKey string `env:"ANTHROPIC_API_KEY"`
	GoogleKey    string `env:"GOOGLE_API_KEY"`
}

// FromEnv overlays environment variables onto cfg. Prefixed variables
// (MEDMODELD_*) win over the well-known unprefixed ones.
func FromEnv(cfg *Config) error {
	var wk wellKnownEnv
	if err := env.Parse(&wk); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	setIf(&cfg.OllamaURL, wk.OllamaURL)
	setIf(&cfg.OpenAIKey, wk.OpenAIKey)
	setIf(&cfg.AnthropicKey, wk.AnthropicKey)
	setIf(&cfg.GoogleKey, wk.GoogleKey)

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Resolve layers defaults, the optional file at path and the environment, then validates.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := FromEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if u, err := url.Parse(c.OllamaURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("ollama_url must be an http(s) URL, got %q", c.OllamaURL))
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			errs = append(errs, fmt.Errorf("log_level: %w", err))
		}
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format must be json or console, got %q", c.LogFormat))
	}
	switch c.RequestLog {
	case "", "off", "error", "info", "debug":
	default:
		errs = append(errs, fmt.Errorf("request_log must be off, error, info or debug, got %q", c.RequestLog))
	}
	for name, v := range map[string]int{
		"probe_timeout_sec":    c.ProbeTimeoutSec,
		"text_timeout_sec":     c.TextTimeoutSec,
		"vision_timeout_sec":   c.VisionTimeoutSec,
		"pull_timeout_sec":     c.PullTimeoutSec,
		"create_timeout_sec":   c.CreateTimeoutSec,
		"start_timeout_sec":    c.StartTimeoutSec,
		"provider_timeout_sec": c.ProviderTimeoutSec,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("max_body_bytes must not be negative"))
	}
	return errors.Join(errs...)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c Config) ProbeTimeout() time.Duration    { return seconds(c.ProbeTimeoutSec) }
func (c Config) TextTimeout() time.Duration     { return seconds(c.TextTimeoutSec) }
func (c Config) VisionTimeout() time.Duration   { return seconds(c.VisionTimeoutSec) }
func (c Config) PullTimeout() time.Duration     { return seconds(c.PullTimeoutSec) }
func (c Config) CreateTimeout() time.Duration   { return seconds(c.CreateTimeoutSec) }
func (c Config) StartTimeout() time.Duration    { return seconds(c.StartTimeoutSec) }
func (c Config) ProviderTimeout() time.Duration { return seconds(c.ProviderTimeoutSec) }
