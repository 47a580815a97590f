// Package config loads the concierge settings from YAML, .env files and
// CONCIERGE_* environment variables, in increasing order of precedence.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "concierge.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CONCIERGE_"

// Config holds every setting of the concierge.
type Config struct {
	LogLevel string `yaml:"log_level"`
	MaxSteps int    `yaml:"max_steps"`

	// RequireApproval pauses before gated nodes.
	RequireApproval bool `yaml:"require_approval"`

	Model    ModelConfig    `yaml:"model"`
	Search   SearchConfig   `yaml:"search"`
	Calendar CalendarConfig `yaml:"calendar"`
	Browser  BrowserConfig  `yaml:"browser"`
	Store    StoreConfig    `yaml:"store"`
	Security SecurityConfig `yaml:"security"`
	Profile  ProfileConfig  `yaml:"profile"`
	HTTP     HTTPConfig     `yaml:"http"`
}

type ModelConfig struct {
	APIKey      string  `yaml:"api_key"`
	Name        string  `yaml:"name"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
}

type SearchConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Index           string `yaml:"index"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
}

type CalendarConfig struct {
	ID              string `yaml:"id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type BrowserConfig struct {
	ControlURL string `yaml:"control_url"`
	Headless   bool   `yaml:"headless"`
	MaxTurns   int    `yaml:"max_turns"`
	// PlannerModel defaults to Model.Name.
	PlannerModel string `yaml:"planner_model"`
}

// StoreConfig selects the run state backend: memory, file, redis or sqlite.
type StoreConfig struct {
	Driver   string        `yaml:"driver"`
	Path     string        `yaml:"path"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type SecurityConfig struct {
	// EncryptionKey is a base64 encoded 32 byte key. Empty disables encryption.
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
	PIIPatterns   []string `yaml:"pii_patterns"`
}

type ProfileConfig struct {
	File   string            `yaml:"file"`
	Values map[string]string `yaml:"values"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:        "info",
		MaxSteps:        200,
		RequireApproval: true,
		Model:           ModelConfig{Name: "gpt-4o-mini"},
		Search:          SearchConfig{Endpoint: "http://localhost:9200", Index: "all-events"},
		Calendar:        CalendarConfig{ID: "primary"},
		Browser:         BrowserConfig{Headless: true, MaxTurns: 15},
		Store:           StoreConfig{Driver: "file", Path: ".concierge/runs", LockTTL: 30 * time.Second},
		HTTP:            HTTPConfig{Addr: ":8080"},
	}
}

// Load reads the YAML file at path (DefaultPath when empty), then .env, then
// the environment. A missing default file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	// .env never overrides variables already set in the process.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cfg, cfg.Validate()
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"LOG_LEVEL":               &c.LogLevel,
		"MODEL_API_KEY":           &c.Model.APIKey,
		"MODEL_NAME":              &c.Model.Name,
		"MODEL_BASE_URL":          &c.Model.BaseURL,
		"SEARCH_ENDPOINT":         &c.Search.Endpoint,
		"SEARCH_INDEX":            &c.Search.Index,
		"SEARCH_REGION":           &c.Search.Region,
		"SEARCH_ACCESS_KEY_ID":    &c.Search.AccessKeyID,
		"SEARCH_SECRET_KEY":       &c.Search.SecretAccessKey,
		"SEARCH_USERNAME":         &c.Search.Username,
		"SEARCH_PASSWORD":         &c.Search.Password,
		"CALENDAR_ID":             &c.Calendar.ID,
		"CALENDAR_CREDENTIALS":    &c.Calendar.CredentialsFile,
		"BROWSER_CONTROL_URL":     &c.Browser.ControlURL,
		"BROWSER_PLANNER_MODEL":   &c.Browser.PlannerModel,
		"STORE_DRIVER":            &c.Store.Driver,
		"STORE_PATH":              &c.Store.Path,
		"STORE_REDIS_URL":         &c.Store.RedisURL,
		"SECURITY_ENCRYPTION_KEY": &c.Security.EncryptionKey,
		"PROFILE_FILE":            &c.Profile.File,
		"HTTP_ADDR":               &c.HTTP.Addr,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_STEPS":         &c.MaxSteps,
		"BROWSER_MAX_TURNS": &c.Browser.MaxTurns,
	}
	for name, dst := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"REQUIRE_APPROVAL": &c.RequireApproval,
		"BROWSER_HEADLESS": &c.Browser.Headless,
	}
	for name, dst := range bools {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}

	durations := map[string]*time.Duration{
		"STORE_TTL":      &c.Store.TTL,
		"STORE_LOCK_TTL": &c.Store.LockTTL,
	}
	for name, dst := range durations {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	if v, ok := lookup(EnvPrefix + "SECURITY_PII_PATTERNS"); ok {
		c.Security.PIIPatterns = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "SECURITY_FALLBACK_KEYS"); ok {
		c.Security.FallbackKeys = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "file", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s driver", c.Store.Driver)
		}
	case "redis":
		if c.Store.RedisURL == "" {
			return errors.New("store.redis_url is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.MaxSteps < 0 {
		return errors.New("max_steps must not be negative")
	}
	if _, _, err := c.Security.Keys(); err != nil {
		return err
	}
	return nil
}

// Keys decodes the encryption keys. A nil active key means encryption is off.
func (s SecurityConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err = decodeKey(s.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("security.encryption_key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("security.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
