// Package static provides an offline generator that answers by echoing the
// retrieved context. It keeps the pipeline runnable without an API key and
// doubles as a deterministic test double.
package static

import (
	"context"
	"strings"

	"docqa/internal/domain"
)

var _ domain.Generator = (*Generator)(nil)

// Generator produces a deterministic answer from the prompt's context
// passages without calling any external model.
type Generator struct{}

// New returns a static Generator.
func New() *Generator { return &Generator{} }

// Name returns the identifier of this generator implementation.
func (g *Generator) Name() string { return "static" }

// Generate extracts the context passages from the prompt and returns them
// verbatim under a fixed heading.
func (g *Generator) Generate(_ context.Context, _ string, prompt string) (string, error) {
	var b strings.Builder
	b.WriteString("Relevant documentation excerpts:\n")
	inContext := false
	for _, line := range strings.Split(prompt, "\n") {
		switch {
		case strings.HasPrefix(line, "Context:"):
			inContext = true
		case strings.HasPrefix(line, "Question:"):
			inContext = false
		case inContext && strings.TrimSpace(line) != "":
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
