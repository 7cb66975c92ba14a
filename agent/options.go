package agent

import (
	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/logging"
	"github.com/Yaaesthetic/agno/memory"
	"github.com/Yaaesthetic/agno/metrics"
	"github.com/Yaaesthetic/agno/model"
	"github.com/Yaaesthetic/agno/storage"
	"github.com/Yaaesthetic/agno/tool"
)

// Options configures an Agent.
type Options struct {
	Name        string
	Role        string
	Description string
	// Instructions are rendered against session state and joined into the
	// system prompt.
	Instructions []Instruction
	// AdditionalContext is appended verbatim to the system prompt.
	AdditionalContext string
	Model             model.Model
	Tools             []tool.Tool

	Knowledge core.KnowledgeSearcher
	// SearchKnowledge gives the model the search_knowledge tool.
	SearchKnowledge bool
	// AddReferences searches the knowledge base with the user message and
	// appends the hits to it.
	AddReferences    bool
	KnowledgeFilters map[string]string
	NumDocuments     int

	// ResponseSchema requests a JSON answer; it is validated before the run
	// completes.
	ResponseSchema *model.ResponseSchema
	Markdown       bool
	Stream         bool

	MaxToolRounds    int
	MaxParallelTools int

	AddHistoryToMessages bool
	NumHistoryRuns       int
	Storage              storage.Store
	// RunMode is recorded on stored runs. Defaults to storage.ModeAgent.
	RunMode string

	Memory *memory.Manager
	// EnableAgenticMemory gives the model the memory tools.
	EnableAgenticMemory bool
	// EnableUserMemories extracts facts from every user message and lists
	// known facts in the system prompt.
	EnableUserMemories     bool
	EnableSessionSummaries bool

	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Defaults applied by New.
const (
	DefaultMaxToolRounds    = 8
	DefaultMaxParallelTools = 4
	DefaultNumHistoryRuns   = 3
	DefaultNumDocuments     = 5
)

func (o *Options) setDefaults() {
	if o.Name == "" {
		o.Name = "agent"
	}

	if o.MaxToolRounds <= 0 {
		o.MaxToolRounds = DefaultMaxToolRounds
	}

	if o.MaxParallelTools <= 0 {
		o.MaxParallelTools = DefaultMaxParallelTools
	}

	if o.NumHistoryRuns <= 0 {
		o.NumHistoryRuns = DefaultNumHistoryRuns
	}

	if o.NumDocuments <= 0 {
		o.NumDocuments = DefaultNumDocuments
	}

	if o.RunMode == "" {
		o.RunMode = storage.ModeAgent
	}

	if o.Logger == nil {
		o.Logger = logging.NoOpLogger{}
	}
}
