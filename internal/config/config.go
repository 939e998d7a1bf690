package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/aicr/internal/providers"
	"gopkg.in/yaml.v3"
)

const appName = "aicr"

// Config represents the aicr configuration.
type Config struct {
	Format         string          `yaml:"format"`
	FailOn         string          `yaml:"failOn"`
	Exclude        []string        `yaml:"exclude"`
	JobSummaryPath string          `yaml:"jobSummaryPath,omitempty"`
	LLM            LLMConfig       `yaml:"llm"`
	Analyzers      AnalyzersConfig `yaml:"analyzers"`
	Cache          CacheConfig     `yaml:"cache"`
	Privacy        PrivacyConfig   `yaml:"privacy"`
	Server         ServerConfig    `yaml:"server"`
	GitHub         GitHubConfig    `yaml:"github"`
}

// LLMConfig controls the natural-language analyzer.
type LLMConfig struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model,omitempty"`
	BaseURL        string `yaml:"baseURL,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	MaxPromptChars int    `yaml:"maxPromptChars"`
	MaxRetries     int    `yaml:"maxRetries"`
	MaxTokens      int    `yaml:"maxTokens"`
	APIKey         string `yaml:"-"`
}

// AnalyzersConfig selects and bounds the analyzers.
type AnalyzersConfig struct {
	Enabled        []string `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeoutSeconds"`
	Parallel       bool     `yaml:"parallel"`
	RadonMinRank   string   `yaml:"radonMinRank"`
}

// CacheConfig controls caching of model responses.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir,omitempty"`
	TTLSeconds int    `yaml:"ttlSeconds"`
}

// PrivacyConfig controls redaction before text leaves the machine.
type PrivacyConfig struct {
	RedactSecrets bool     `yaml:"redactSecrets"`
	RedactPaths   []string `yaml:"redactPaths,omitempty"`
}

// ServerConfig controls `aicr serve`.
type ServerConfig struct {
	Addr                 string `yaml:"addr"`
	GinMode              string `yaml:"ginMode"`
	ReviewTimeoutSeconds int    `yaml:"reviewTimeoutSeconds"`
	WebhookSecret        string `yaml:"-"`
}

// GitHubConfig controls the GitHub API client.
type GitHubConfig struct {
	APIURL string `yaml:"apiURL,omitempty"`
	Token  string `yaml:"-"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Format:  "text",
		FailOn:  "none",
		Exclude: []string{"vendor/**", "**/node_modules/**"},
		LLM: LLMConfig{
			Provider:       "openai",
			TimeoutSeconds: 60,
			MaxPromptChars: 15000,
			MaxTokens:      4096,
		},
		Analyzers: AnalyzersConfig{
			Enabled:        []string{"pylint", "bandit", "radon", "llm"},
			TimeoutSeconds: 120,
			Parallel:       true,
			RadonMinRank:   "A",
		},
		Cache: CacheConfig{
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
		Server: ServerConfig{
			Addr:                 ":8080",
			GinMode:              "release",
			ReviewTimeoutSeconds: 300,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory for aicr.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName), nil
		}
		return filepath.Join(home, "AppData", "Roaming", appName), nil
	default:
		return filepath.Join(home, ".config", appName), nil
	}
}

// ConfigPath returns the full path to the config file. AICR_CONFIG wins
// when set.
func ConfigPath() (string, error) {
	if p := os.Getenv("AICR_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadFile decodes the file at path on top of cfg. Keys absent from the file
// keep their current values. A missing file is not an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Save writes cfg to path as YAML. Credentials are never written.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(path, overrides)
}

// LoadFrom is Load with an explicit config file path.
func LoadFrom(path string, overrides map[string]string) (Config, error) {
	cfg := Default()
	if err := LoadFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	resolve(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKeys maps environment variables onto SetField keys.
var envKeys = []struct{ env, key string }{
	{"AICR_PROVIDER", "llm.provider"},
	{"AICR_MODEL", "llm.model"},
	{"AICR_BASE_URL", "llm.baseURL"},
	{"AICR_FORMAT", "format"},
	{"AICR_FAIL_ON", "failOn"},
	{"AICR_ANALYZERS", "analyzers.enabled"},
	{"AICR_MAX_PROMPT_CHARS", "llm.maxPromptChars"},
	{"AICR_CACHE", "cache.enabled"},
	{"GITHUB_STEP_SUMMARY", "jobSummaryPath"},
	{"GITHUB_API_URL", "github.apiURL"},
}

func mergeEnv(cfg *Config) error {
	for _, e := range envKeys {
		v := os.Getenv(e.env)
		if v == "" {
			continue
		}
		if err := SetField(cfg, e.key, v); err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = v
	}
	if v := os.Getenv("AICR_WEBHOOK_SECRET"); v != "" {
		cfg.Server.WebhookSecret = v
	}
	return nil
}

// mergeOverrides applies CLI overrides in key order so the result does not
// depend on map iteration.
func mergeOverrides(cfg *Config, overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k, v := range overrides {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := SetField(cfg, k, overrides[k]); err != nil {
			return err
		}
	}
	return nil
}

// resolve fills values that depend on other settings: the provider's model
// default and its credential.
func resolve(cfg *Config) {
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = providers.DefaultModel(cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(providers.CredentialEnv(cfg.LLM.Provider))
		if cfg.LLM.APIKey == "" && (cfg.LLM.Provider == "gemini" || cfg.LLM.Provider == "google") {
			cfg.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
	}
}

// Validate checks enumerated and numeric settings.
func (c Config) Validate() error {
	switch c.FailOn {
	case "none", "low", "medium", "high":
	default:
		return fmt.Errorf("invalid failOn %q (want none, low, medium or high)", c.FailOn)
	}
	if !slices.Contains(providers.Names, c.LLM.Provider) && c.LLM.Provider != "google" {
		return fmt.Errorf("unknown provider %q (want one of %s)", c.LLM.Provider, strings.Join(providers.Names, ", "))
	}
	if c.LLM.TimeoutSeconds < 0 || c.Analyzers.TimeoutSeconds < 0 || c.LLM.MaxRetries < 0 {
		return errors.New("timeouts and retry counts must not be negative")
	}
	return nil
}

// LLMTimeout returns the model call timeout.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// AnalyzerTimeout returns the per-tool invocation timeout.
func (c Config) AnalyzerTimeout() time.Duration {
	return time.Duration(c.Analyzers.TimeoutSeconds) * time.Second
}

// Keys lists every key accepted by SetField.
var Keys = []string{
	"format", "failOn", "exclude", "jobSummaryPath",
	"llm.provider", "llm.model", "llm.baseURL", "llm.timeoutSeconds",
	"llm.maxPromptChars", "llm.maxRetries", "llm.maxTokens",
	"analyzers.enabled", "analyzers.timeoutSeconds", "analyzers.parallel", "analyzers.radonMinRank",
	"cache.enabled", "cache.dir", "cache.ttlSeconds",
	"privacy.redactSecrets", "privacy.redactPaths",
	"server.addr", "server.ginMode", "server.reviewTimeoutSeconds",
	"github.apiURL",
}

// SetField sets a single config field by key name. Returns error if key is unknown.
// List values are comma separated.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "format":
		cfg.Format = value
	case "failOn":
		cfg.FailOn = strings.ToLower(value)
	case "exclude":
		cfg.Exclude = SplitList(value)
	case "jobSummaryPath":
		cfg.JobSummaryPath = value
	case "llm.provider", "provider":
		cfg.LLM.Provider = value
	case "llm.model", "model":
		cfg.LLM.Model = value
	case "llm.baseURL":
		cfg.LLM.BaseURL = value
	case "llm.timeoutSeconds":
		return setInt(&cfg.LLM.TimeoutSeconds, key, value)
	case "llm.maxPromptChars":
		return setInt(&cfg.LLM.MaxPromptChars, key, value)
	case "llm.maxRetries":
		return setInt(&cfg.LLM.MaxRetries, key, value)
	case "llm.maxTokens":
		return setInt(&cfg.LLM.MaxTokens, key, value)
	case "analyzers.enabled", "analyzers":
		cfg.Analyzers.Enabled = SplitList(value)
	case "analyzers.timeoutSeconds":
		return setInt(&cfg.Analyzers.TimeoutSeconds, key, value)
	case "analyzers.parallel":
		return setBool(&cfg.Analyzers.Parallel, key, value)
	case "analyzers.radonMinRank":
		cfg.Analyzers.RadonMinRank = strings.ToUpper(value)
	case "cache.enabled":
		return setBool(&cfg.Cache.Enabled, key, value)
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.ttlSeconds":
		return setInt(&cfg.Cache.TTLSeconds, key, value)
	case "privacy.redactSecrets":
		return setBool(&cfg.Privacy.RedactSecrets, key, value)
	case "privacy.redactPaths":
		cfg.Privacy.RedactPaths = SplitList(value)
	case "server.addr":
		cfg.Server.Addr = value
	case "server.ginMode":
		cfg.Server.GinMode = value
	case "server.reviewTimeoutSeconds":
		return setInt(&cfg.Server.ReviewTimeoutSeconds, key, value)
	case "github.apiURL":
		cfg.GitHub.APIURL = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s must be true or false: %w", key, err)
	}
	*dst = b
	return nil
}

// SplitList splits a comma-separated value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
