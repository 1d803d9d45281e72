// Package config loads the engine's YAML configuration, applying defaults
// the way the teacher's config package does: zero-value fields are filled
// in after unmarshalling rather than via struct tags.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the dispatch engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Session  SessionConfig  `yaml:"session"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Router   RouterConfig   `yaml:"router"`
	Chat      ChatConfig      `yaml:"chat"`
	LLM       LLMConfig       `yaml:"llm"`
	Logging   LoggingConfig   `yaml:"logging"`
	Retriever RetrieverConfig `yaml:"retriever"`
}

// ServerConfig configures process-level concerns.
type ServerConfig struct {
	MetricsPort int    `yaml:"metrics_port"`
	Transport   string `yaml:"transport"` // "slack" or "discord"
}

// SessionConfig configures SessionStore bounds.
type SessionConfig struct {
	MaxMessages     int           `yaml:"max_messages"`
	MaxContextChars int           `yaml:"max_context_chars"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	SQLitePath      string        `yaml:"sqlite_path"`
}

// RecoveryConfig configures ErrorRecovery's reset interval and high-rate
// warning threshold; per-class policy/threshold defaults live in
// internal/recovery since they are exact constants the spec inherited from
// the original implementation, not meant to be operator-tunable.
type RecoveryConfig struct {
	ResetInterval       time.Duration `yaml:"reset_interval"`
	HighRateWarningAt   int           `yaml:"high_rate_warning_at"`
}

// RouterConfig configures the router's allowlists and aliases.
type RouterConfig struct {
	BotNameAliases  []string `yaml:"bot_name_aliases"`
	CompanyDomains  []string `yaml:"company_domains"`
	ApprovedRooms   []string `yaml:"approved_rooms"`
	ApprovedDomains []string `yaml:"approved_domains"`
	AzdoBaseURL     string   `yaml:"azdo_base_url"`

	// FalconApprovedRooms gates KindFalcon (EDR) commands specifically,
	// on top of ApprovedRooms: empty means EDR commands are allowed in
	// every room ApprovedRooms already allows. A non-empty list
	// restricts EDR commands to that subset, per spec §9's room
	// allowlist for EDR commands.
	FalconApprovedRooms []string `yaml:"falcon_approved_rooms"`
}

// ChatConfig configures the thinking-message progress lifecycle.
type ChatConfig struct {
	ThinkingIntervalSeconds int `yaml:"thinking_interval_seconds"`
	MaxThinkingEdits        int `yaml:"max_thinking_edits"`
	MaxMessageChars         int `yaml:"max_message_chars"`
}

// LLMConfig configures the LLM provider and timeout.
type LLMConfig struct {
	Provider string        `yaml:"provider"` // "openai" or "anthropic"
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	APIKeyEnv string       `yaml:"api_key_env"`
	BaseURL  string        `yaml:"base_url"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// RetrieverConfig points at the TOML corpus manifests that back the
// document_search and contacts_lookup tools. An empty path disables the
// corresponding tool.
type RetrieverConfig struct {
	ManifestPath         string `yaml:"manifest_path"`
	ContactsManifestPath string `yaml:"contacts_manifest_path"`
}

// Default returns a Config with every spec-mandated default applied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			MetricsPort: 9090,
			Transport:   "slack",
		},
		Session: SessionConfig{
			MaxMessages:     30,
			MaxContextChars: 4000,
			SessionTTL:      24 * time.Hour,
			SweepInterval:   1 * time.Hour,
			SQLitePath:      "sessions.db",
		},
		Recovery: RecoveryConfig{
			ResetInterval:     1 * time.Hour,
			HighRateWarningAt: 10,
		},
		Router: RouterConfig{
			BotNameAliases: []string{"pokedex", "bot"},
			CompanyDomains: nil,
			AzdoBaseURL:    "https://dev.azure.com",
		},
		Chat: ChatConfig{
			ThinkingIntervalSeconds: 15,
			MaxThinkingEdits:        9,
			MaxMessageChars:         7000,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:   60 * time.Second,
			APIKeyEnv: "LLM_API_KEY",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file at path, merging over Default(). A missing file is
// not an error: the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Session.MaxMessages <= 0 {
		c.Session.MaxMessages = d.Session.MaxMessages
	}
	if c.Session.MaxContextChars <= 0 {
		c.Session.MaxContextChars = d.Session.MaxContextChars
	}
	if c.Session.SessionTTL <= 0 {
		c.Session.SessionTTL = d.Session.SessionTTL
	}
	if c.Session.SweepInterval <= 0 {
		c.Session.SweepInterval = d.Session.SweepInterval
	}
	if c.Session.SQLitePath == "" {
		c.Session.SQLitePath = d.Session.SQLitePath
	}
	if c.Recovery.ResetInterval <= 0 {
		c.Recovery.ResetInterval = d.Recovery.ResetInterval
	}
	if c.Recovery.HighRateWarningAt <= 0 {
		c.Recovery.HighRateWarningAt = d.Recovery.HighRateWarningAt
	}
	if c.Chat.ThinkingIntervalSeconds <= 0 {
		c.Chat.ThinkingIntervalSeconds = d.Chat.ThinkingIntervalSeconds
	}
	if c.Chat.MaxThinkingEdits <= 0 {
		c.Chat.MaxThinkingEdits = d.Chat.MaxThinkingEdits
	}
	if c.Chat.MaxMessageChars <= 0 {
		c.Chat.MaxMessageChars = d.Chat.MaxMessageChars
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = d.LLM.Timeout
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.Server.MetricsPort <= 0 {
		c.Server.MetricsPort = d.Server.MetricsPort
	}
}
