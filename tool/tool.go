// Package tool implements the function calling surface agents expose to
// models: named capabilities with a JSON schema for their arguments, schema
// validated before execution, and uniform error codes.
package tool

import (
	"fmt"

	"github.com/Yaaesthetic/agno/core"
)

// Error codes carried by *ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
)

// Tool is a capability an agent can call.
//
// Implementations must be safe for concurrent use: the agent runs the calls of
// one model turn in parallel.
type Tool interface {
	// Name is the identifier the model uses (snake_case).
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Parameters is the JSON schema of the argument object.
	Parameters() map[string]any

	// Call runs the tool with decoded arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ToolError is returned for validation and execution failures.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a ToolError.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// Set indexes tools by name.
type Set map[string]Tool

// NewSet builds a Set. Later tools replace earlier ones with the same name.
func NewSet(tools ...Tool) Set {
	s := make(Set, len(tools))
	for _, t := range tools {
		s[t.Name()] = t
	}

	return s
}

// Lookup returns the named tool or a NOT_FOUND error.
func (s Set) Lookup(name string) (Tool, error) {
	t, ok := s[name]
	if !ok {
		return nil, NewToolError(name, "unknown tool", CodeNotFound)
	}

	return t, nil
}
