package agent

import (
	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/internal/util"
)

// Provider supplies instruction text at run time.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func adapts a function to Provider.
type Func func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is either a static template or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a template string.
// {{ .key }} markers are filled from session state.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// Texts converts plain strings to instructions.
func Texts(texts ...string) []Instruction {
	out := make([]Instruction, 0, len(texts))
	for _, t := range texts {
		out = append(out, NewInstructionFromText(t))
	}

	return out
}

// IsStatic reports whether the instruction is backed by a template string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text for a run.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}

	return util.RenderTemplate(i.text, rc.Session.Clone().State)
}
