package config

import (
	"fmt"
	"strings"
)

// Tool sets an agent or team can enable by name.
const (
	ToolShopping = "shopping"
)

// SourceConfig is one file or directory of a knowledge base.
type SourceConfig struct {
	Path     string            `yaml:"path"`
	Metadata map[string]string `yaml:"metadata"`
}

// EmbedderConfig selects the embedding function of a knowledge base.
type EmbedderConfig struct {
	// Kind is hash, openai or ollama.
	Kind    string `yaml:"kind"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// KnowledgeConfig describes a vector knowledge base.
type KnowledgeConfig struct {
	Sources      []SourceConfig `yaml:"sources"`
	Extensions   []string       `yaml:"extensions"`
	Collection   string         `yaml:"collection"`
	PersistPath  string         `yaml:"persist_path"`
	Compress     bool           `yaml:"compress"`
	ChunkSize    int            `yaml:"chunk_size"`
	ChunkOverlap int            `yaml:"chunk_overlap"`
	NumDocuments int            `yaml:"num_documents"`
	Embedder     EmbedderConfig `yaml:"embedder"`
	// Recreate drops and reloads the collection on startup.
	Recreate bool `yaml:"recreate"`
}

// SetDefaults names the collection after the base.
func (k *KnowledgeConfig) SetDefaults(name string) {
	if k.Collection == "" {
		k.Collection = name
	}

	if k.Embedder.Kind == "" {
		k.Embedder.Kind = "hash"
	}

	if k.NumDocuments == 0 {
		k.NumDocuments = 5
	}
}

// Validate checks sources and chunking.
func (k *KnowledgeConfig) Validate() error {
	for i, s := range k.Sources {
		if s.Path == "" {
			return fmt.Errorf("sources[%d]: path is required", i)
		}
	}

	switch k.Embedder.Kind {
	case "hash", "openai", "ollama":
	default:
		return fmt.Errorf("unknown embedder %q (valid: hash, openai, ollama)", k.Embedder.Kind)
	}

	if k.ChunkSize < 0 || k.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_size and chunk_overlap must be non-negative")
	}

	if k.ChunkSize > 0 && k.ChunkOverlap >= k.ChunkSize {
		return fmt.Errorf("chunk_overlap must be smaller than chunk_size")
	}

	if k.NumDocuments < 0 {
		return fmt.Errorf("num_documents must be non-negative")
	}

	return nil
}

// MemoryFlags toggles the memory features of an agent or team.
type MemoryFlags struct {
	UserMemories     bool `yaml:"enable_user_memories"`
	SessionSummaries bool `yaml:"enable_session_summaries"`
	AgenticMemory    bool `yaml:"enable_agentic_memory"`
}

// Enabled reports whether any memory feature is on.
func (f MemoryFlags) Enabled() bool {
	return f.UserMemories || f.SessionSummaries || f.AgenticMemory
}

// ResponseConfig asks for structured output validated against Schema.
type ResponseConfig struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Schema      map[string]any `yaml:"schema"`
}

// AgentConfig describes one agent.
type AgentConfig struct {
	Name              string            `yaml:"name"`
	Role              string            `yaml:"role"`
	Description       string            `yaml:"description"`
	Model             string            `yaml:"model"`
	Instructions      []string          `yaml:"instructions"`
	AdditionalContext string            `yaml:"additional_context"`
	Tools             []string          `yaml:"tools"`
	Knowledge         string            `yaml:"knowledge"`
	SearchKnowledge   bool              `yaml:"search_knowledge"`
	AddReferences     bool              `yaml:"add_references"`
	KnowledgeFilters  map[string]string `yaml:"knowledge_filters"`
	Markdown          bool              `yaml:"markdown"`
	Stream            bool              `yaml:"stream"`
	Response          *ResponseConfig   `yaml:"response_model,omitempty"`
	AddHistory        bool              `yaml:"add_history_to_messages"`
	NumHistoryRuns    int               `yaml:"num_history_runs"`
	MaxToolRounds     int               `yaml:"max_tool_rounds"`
	MaxParallelTools  int               `yaml:"max_parallel_tools"`
	MemoryFlags       `yaml:",inline"`
}

// SetDefaults names the agent after its key.
func (a *AgentConfig) SetDefaults(key string) {
	if a.Name == "" {
		a.Name = key
	}
}

// Validate checks fields that need no cross references.
func (a *AgentConfig) Validate() error {
	if a.Model == "" {
		return fmt.Errorf("model is required")
	}

	if err := validateTools(a.Tools); err != nil {
		return err
	}

	if a.Response != nil && len(a.Response.Schema) == 0 {
		return fmt.Errorf("response_model.schema is required")
	}

	if a.NumHistoryRuns < 0 || a.MaxToolRounds < 0 || a.MaxParallelTools < 0 {
		return fmt.Errorf("num_history_runs, max_tool_rounds and max_parallel_tools must be non-negative")
	}

	return nil
}

// TeamConfig describes one team. Members name agents or other teams.
type TeamConfig struct {
	Name                    string            `yaml:"name"`
	Mode                    string            `yaml:"mode"`
	Role                    string            `yaml:"role"`
	Description             string            `yaml:"description"`
	Model                   string            `yaml:"model"`
	Members                 []string          `yaml:"members"`
	Instructions            []string          `yaml:"instructions"`
	AdditionalContext       string            `yaml:"additional_context"`
	Tools                   []string          `yaml:"tools"`
	Knowledge               string            `yaml:"knowledge"`
	SearchKnowledge         bool              `yaml:"search_knowledge"`
	KnowledgeFilters        map[string]string `yaml:"knowledge_filters"`
	Markdown                bool              `yaml:"markdown"`
	Response                *ResponseConfig   `yaml:"response_model,omitempty"`
	ShareMemberInteractions bool              `yaml:"share_member_interactions"`
	AddHistory              bool              `yaml:"add_history_to_messages"`
	NumHistoryRuns          int               `yaml:"num_history_runs"`
	MaxToolRounds           int               `yaml:"max_tool_rounds"`
	MemoryFlags             `yaml:",inline"`
}

// SetDefaults names the team after its key and defaults to coordinate mode.
func (t *TeamConfig) SetDefaults(key string) {
	if t.Name == "" {
		t.Name = key
	}

	if t.Mode == "" {
		t.Mode = "coordinate"
	}

	t.Mode = strings.ToLower(t.Mode)
}

// Validate checks fields that need no cross references.
func (t *TeamConfig) Validate() error {
	if t.Model == "" {
		return fmt.Errorf("model is required")
	}

	switch t.Mode {
	case "route", "coordinate", "collaborate":
	default:
		return fmt.Errorf("unknown mode %q (valid: route, coordinate, collaborate)", t.Mode)
	}

	seen := map[string]bool{}

	for _, m := range t.Members {
		if seen[m] {
			return fmt.Errorf("duplicate member %q", m)
		}

		seen[m] = true
	}

	if err := validateTools(t.Tools); err != nil {
		return err
	}

	if t.Response != nil && len(t.Response.Schema) == 0 {
		return fmt.Errorf("response_model.schema is required")
	}

	if t.NumHistoryRuns < 0 || t.MaxToolRounds < 0 {
		return fmt.Errorf("num_history_runs and max_tool_rounds must be non-negative")
	}

	return nil
}

func validateTools(tools []string) error {
	for _, name := range tools {
		if name != ToolShopping {
			return fmt.Errorf("unknown tool set %q (valid: %s)", name, ToolShopping)
		}
	}

	return nil
}
