// Package config loads the YAML description of models, storage, knowledge
// bases, agents and teams. Values may reference the environment with ${VAR}
// or ${VAR:-default}; .env files next to the config are loaded first.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root document.
type Config struct {
	Logging   LoggingConfig               `yaml:"logging"`
	Models    map[string]*ModelConfig     `yaml:"models"`
	Database  *DatabaseConfig             `yaml:"database,omitempty"`
	State     StateConfig                 `yaml:"state"`
	Memory    MemoryConfig                `yaml:"memory"`
	Knowledge map[string]*KnowledgeConfig `yaml:"knowledge"`
	Agents    map[string]*AgentConfig     `yaml:"agents"`
	Teams     map[string]*TeamConfig      `yaml:"teams"`
	Server    ServerConfig                `yaml:"server"`
}

// Load reads, expands, defaults and validates the config at path.
func Load(path string) (*Config, error) {
	if err := LoadDotEnvForConfig(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes a YAML document.
func Parse(data []byte) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	expandNode(&root)

	var cfg Config

	if len(root.Content) > 0 {
		if err := root.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.State.SetDefaults()
	c.Server.SetDefaults()

	if c.Database != nil {
		c.Database.SetDefaults()
	}

	for name, m := range c.Models {
		if m == nil {
			m = &ModelConfig{}
			c.Models[name] = m
		}

		m.SetDefaults()
	}

	for name, k := range c.Knowledge {
		if k == nil {
			k = &KnowledgeConfig{}
			c.Knowledge[name] = k
		}

		k.SetDefaults(name)
	}

	for name, a := range c.Agents {
		if a == nil {
			a = &AgentConfig{}
			c.Agents[name] = a
		}

		a.SetDefaults(name)
	}

	for name, t := range c.Teams {
		if t == nil {
			t = &TeamConfig{}
			c.Teams[name] = t
		}

		t.SetDefaults(name)
	}
}

// Validate checks every section and the references between them.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := c.State.Validate(); err != nil {
		return fmt.Errorf("state: %w", err)
	}

	if c.State.Backend == StateSQL && c.Database == nil {
		return fmt.Errorf("state: backend sql requires a database section")
	}

	if c.Memory.Model != "" && c.Models[c.Memory.Model] == nil {
		return fmt.Errorf("memory: unknown model %q", c.Memory.Model)
	}

	for _, name := range sortedKeys(c.Models) {
		if err := c.Models[name].Validate(); err != nil {
			return fmt.Errorf("model %s: %w", name, err)
		}
	}

	for _, name := range sortedKeys(c.Knowledge) {
		if err := c.Knowledge[name].Validate(); err != nil {
			return fmt.Errorf("knowledge %s: %w", name, err)
		}
	}

	for _, name := range sortedKeys(c.Agents) {
		if _, clash := c.Teams[name]; clash {
			return fmt.Errorf("%q is both an agent and a team", name)
		}

		if err := c.validateAgent(c.Agents[name]); err != nil {
			return fmt.Errorf("agent %s: %w", name, err)
		}
	}

	for _, name := range sortedKeys(c.Teams) {
		if err := c.validateTeam(c.Teams[name]); err != nil {
			return fmt.Errorf("team %s: %w", name, err)
		}
	}

	for _, name := range sortedKeys(c.Teams) {
		if err := c.checkCycle(name, map[string]bool{}); err != nil {
			return err
		}
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	return nil
}

func (c *Config) validateAgent(a *AgentConfig) error {
	if err := a.Validate(); err != nil {
		return err
	}

	if c.Models[a.Model] == nil {
		return fmt.Errorf("unknown model %q", a.Model)
	}

	if a.Knowledge != "" && c.Knowledge[a.Knowledge] == nil {
		return fmt.Errorf("unknown knowledge base %q", a.Knowledge)
	}

	if a.AddHistory && c.Database == nil {
		return fmt.Errorf("add_history_to_messages requires a database section")
	}

	return nil
}

func (c *Config) validateTeam(t *TeamConfig) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if c.Models[t.Model] == nil {
		return fmt.Errorf("unknown model %q", t.Model)
	}

	if t.Knowledge != "" && c.Knowledge[t.Knowledge] == nil {
		return fmt.Errorf("unknown knowledge base %q", t.Knowledge)
	}

	if t.AddHistory && c.Database == nil {
		return fmt.Errorf("add_history_to_messages requires a database section")
	}

	for _, m := range t.Members {
		if c.Agents[m] == nil && c.Teams[m] == nil {
			return fmt.Errorf("unknown member %q", m)
		}
	}

	return nil
}

func (c *Config) checkCycle(name string, path map[string]bool) error {
	if path[name] {
		return fmt.Errorf("team %s: member cycle", name)
	}

	path[name] = true
	defer delete(path, name)

	for _, m := range c.Teams[name].Members {
		if c.Teams[m] != nil {
			if err := c.checkCycle(m, path); err != nil {
				return err
			}
		}
	}

	return nil
}

// Runnable lists agent and team keys, sorted.
func (c *Config) Runnable() []string {
	names := append(sortedKeys(c.Agents), sortedKeys(c.Teams)...)
	sort.Strings(names)

	return names
}

// LoggingConfig selects the log backend.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Backend string `yaml:"backend"`
}

// SetDefaults uses info level JSON on slog.
func (l *LoggingConfig) SetDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}

	if l.Format == "" {
		l.Format = "json"
	}

	if l.Backend == "" {
		l.Backend = "slog"
	}
}

// Validate checks the names.
func (l *LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q", l.Level)
	}

	switch l.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("invalid format %q (valid: json, text, console)", l.Format)
	}

	switch l.Backend {
	case "slog", "zerolog":
	default:
		return fmt.Errorf("invalid backend %q (valid: slog, zerolog)", l.Backend)
	}

	return nil
}

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// ModelConfig describes one model.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	// Responses are canned prompt -> answer pairs for the mock provider.
	Responses map[string]string `yaml:"responses"`
}

// SetDefaults picks the provider API key from the usual variables.
func (m *ModelConfig) SetDefaults() {
	if m.Provider == "" {
		m.Provider = ProviderOpenAI
	}

	if m.APIKey == "" {
		switch m.Provider {
		case ProviderOpenAI:
			m.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderAnthropic:
			m.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case ProviderGemini:
			m.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}

// Validate checks the provider.
func (m *ModelConfig) Validate() error {
	switch m.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
	case ProviderGemini:
		if m.APIKey == "" {
			return fmt.Errorf("gemini requires api_key or GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown provider %q (valid: openai, anthropic, gemini, mock)", m.Provider)
	}

	if m.Temperature < 0 || m.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2]")
	}

	if m.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}

	return nil
}

// State backends.
const (
	StateMemory = "memory"
	StateSQL    = "sql"
	StateRedis  = "redis"
)

// StateConfig says where the shopping list store is persisted.
type StateConfig struct {
	Backend string      `yaml:"backend"`
	Name    string      `yaml:"name"`
	Redis   RedisConfig `yaml:"redis"`
	// Sessions are shopping lists initialised at startup, after any saved
	// state has been loaded.
	Sessions []SessionRef `yaml:"sessions"`
}

// SessionRef names one user and session pair.
type SessionRef struct {
	User    string `yaml:"user"`
	Session string `yaml:"session"`
}

// RedisConfig holds a Redis connection.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// SetDefaults keeps state in memory under the name "shopping".
func (s *StateConfig) SetDefaults() {
	if s.Backend == "" {
		s.Backend = StateMemory
	}

	if s.Name == "" {
		s.Name = "shopping"
	}
}

// Validate checks the backend.
func (s *StateConfig) Validate() error {
	switch s.Backend {
	case StateMemory, StateSQL:
	case StateRedis:
		if s.Redis.Address == "" {
			return fmt.Errorf("redis.address is required")
		}
	default:
		return fmt.Errorf("unknown backend %q (valid: memory, sql, redis)", s.Backend)
	}

	for i, ref := range s.Sessions {
		if ref.User == "" || ref.Session == "" {
			return fmt.Errorf("sessions[%d]: user and session are required", i)
		}
	}

	return nil
}

// MemoryConfig configures the memory manager shared by agents and teams.
type MemoryConfig struct {
	// Model drives memory extraction and summaries; empty uses the model of
	// the agent or team that owns the manager.
	Model string `yaml:"model"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SetDefaults listens on :8080.
func (s *ServerConfig) SetDefaults() {
	if s.Address == "" {
		s.Address = ":8080"
	}

	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}

	if s.WriteTimeout == 0 {
		s.WriteTimeout = 5 * time.Minute
	}

	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 10 * time.Second
	}
}

// Validate checks the timeouts.
func (s *ServerConfig) Validate() error {
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
