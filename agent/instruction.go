package agent

import (
	"context"

	"github.com/hupe1980/ragmesh/core"
)

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from the run state, environment, etc.
type Provider interface {
	Instruction(ctx context.Context, state core.State) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, state core.State) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, state core.State) (string, error) {
	return f(ctx, state)
}

// Instruction represents either a static instruction string or a dynamic provider.
// The resolved text is rendered as a text/template.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, state core.State) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ctx context.Context, state core.State) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, state)
	}
	return i.text, nil
}
