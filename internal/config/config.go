// Package config loads tutorgate configuration from an optional YAML file
// with environment variable overrides. Absent collaborator credentials are
// not errors; capabilities degrade at runtime instead.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tutorgate configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Search  SearchConfig  `yaml:"search"`
	Store   StoreConfig   `yaml:"store"`
	Browser BrowserConfig `yaml:"browser"`
	Safety  SafetyConfig  `yaml:"safety"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LLMConfig configures the completion backend.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// SearchConfig configures the Brave Search grounding backend.
type SearchConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// StoreConfig configures durable storage. An empty SQLitePath selects the
// in-memory fallback with identical external behavior.
type StoreConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// BrowserConfig configures the rich page-fetch path. An empty Bin disables
// the headless browser and leaves only the plain HTTP fallback.
type BrowserConfig struct {
	Bin            string `yaml:"bin"`
	PersistCookies bool   `yaml:"persist_cookies"`
	NavTimeout     string `yaml:"nav_timeout"`
}

// SafetyConfig carries operator-supplied rule extensions. ExtraRulesRaw is
// either a JSON string array or newline-delimited text.
type SafetyConfig struct {
	ExtraRulesRaw string `yaml:"extra_rules"`
}

// LoggingConfig configures the categorized debug logger.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: "120s",
		},
		Search: SearchConfig{
			BaseURL: "https://api.search.brave.com/res/v1/web/search",
			Timeout: "10s",
		},
		Browser: BrowserConfig{NavTimeout: "25s"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML config at path (missing file returns defaults) and
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("TUTORGATE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("LLM_API_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if key := os.Getenv("BRAVE_API_KEY"); key != "" {
		c.Search.APIKey = key
	}
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		c.Store.SQLitePath = path
	}
	if rules := os.Getenv("EXTRA_RULES"); rules != "" {
		c.Safety.ExtraRulesRaw = rules
	}
	if bin := os.Getenv("BROWSER_BIN"); bin != "" {
		c.Browser.Bin = bin
	}
	if v := os.Getenv("PERSIST_COOKIES"); v != "" {
		c.Browser.PersistCookies = truthy(v)
	}
	if dir := os.Getenv("TUTORGATE_LOG_DIR"); dir != "" {
		c.Logging.Dir = dir
	}
	if lvl := os.Getenv("TUTORGATE_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
}

// ExtraRules parses the operator rule extension list. Structured JSON parse
// first; on failure fall back to newline splitting.
func (c *Config) ExtraRules() []string {
	raw := strings.TrimSpace(c.Safety.ExtraRulesRaw)
	if raw == "" {
		return nil
	}

	var parsed []string
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		out := parsed[:0]
		for _, r := range parsed {
			if r = strings.TrimSpace(r); r != "" {
				out = append(out, r)
			}
		}
		return out
	}

	var rules []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			rules = append(rules, line)
		}
	}
	return rules
}

// LLMTimeout returns the completion call timeout.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// SearchTimeout returns the search call timeout.
func (c *Config) SearchTimeout() time.Duration {
	return parseDuration(c.Search.Timeout, 10*time.Second)
}

// NavTimeout returns the headless-browser navigation timeout.
func (c *Config) NavTimeout() time.Duration {
	return parseDuration(c.Browser.NavTimeout, 25*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
