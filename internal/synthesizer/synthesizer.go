// Package synthesizer assembles a bounded prompt from retrieved passages
// and the question, calls the generation model once, and returns a sourced
// answer.
//
// Empty-retrieval policy, fixed: when retrieval returns nothing the model
// is NOT called; the synthesizer returns NoContextAnswer with no sources.
package synthesizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docqa/internal/domain"
)

var _ domain.Synthesizer = (*Synthesizer)(nil)

// DefaultPromptBudget is the maximum rendered prompt size in runes.
const DefaultPromptBudget = 6000

// NoContextAnswer is the deterministic answer for empty retrieval results.
const NoContextAnswer = "No relevant documentation found for this question."

// DefaultSystemPrompt instructs the model to stay within the context.
const DefaultSystemPrompt = "You are a documentation assistant. Answer the question using only the numbered context passages. " +
	"Cite passages by their numbers. If the context does not contain the answer, say that the documentation does not cover it."

// Synthesizer renders the prompt template under a rune budget, dropping the
// lowest-scoring passages first when over budget.
type Synthesizer struct {
	generator domain.Generator
	budget    int
	system    string
	logger    *slog.Logger
}

// New validates the prompt budget and returns a Synthesizer. Zero budget
// selects the default; an empty system prompt selects the default.
func New(generator domain.Generator, budget int, system string) (*Synthesizer, error) {
	if budget < 0 {
		return nil, fmt.Errorf("%w: prompt budget must not be negative, got %d", domain.ErrConfig, budget)
	}
	if budget == 0 {
		budget = DefaultPromptBudget
	}
	if system == "" {
		system = DefaultSystemPrompt
	}
	return &Synthesizer{
		generator: generator,
		budget:    budget,
		system:    system,
		logger:    slog.Default().With("component", "synthesizer"),
	}, nil
}

// Synthesize produces an Answer for the question from the retrieval result.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, result domain.RetrievalResult) (domain.Answer, error) {
	if len(result.Hits) == 0 {
		return domain.Answer{Text: NoContextAnswer}, nil
	}

	used := result.Hits
	prompt := renderPrompt(question, used)
	for len([]rune(prompt)) > s.budget && len(used) > 1 {
		used = used[:len(used)-1]
		prompt = renderPrompt(question, used)
	}
	if len([]rune(prompt)) > s.budget {
		// A single passage can still blow the budget; cut its text to what
		// fits past the template overhead rather than fail the query. The
		// prompt only stays over budget when the overhead alone exceeds it.
		trimmed := used[0]
		trimmed.Entry.Text = ""
		overhead := len([]rune(renderPrompt(question, []domain.Scored{trimmed})))
		keep := s.budget - overhead
		if keep < 0 {
			keep = 0
		}
		if text := []rune(used[0].Entry.Text); keep < len(text) {
			trimmed.Entry.Text = string(text[:keep])
		} else {
			trimmed.Entry.Text = used[0].Entry.Text
		}
		used = []domain.Scored{trimmed}
		prompt = renderPrompt(question, used)
	}

	s.logger.Debug("synthesizing answer", "passages", len(used), "prompt_runes", len([]rune(prompt)))
	text, err := s.generator.Generate(ctx, s.system, prompt)
	if err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{
		Text:       strings.TrimSpace(text),
		Sources:    dedupeSources(used),
		ChunksUsed: len(used),
	}, nil
}

// renderPrompt lays out the numbered passages followed by the question.
func renderPrompt(question string, hits []domain.Scored) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, h := range hits {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, h.Entry.Source.Title, h.Entry.Source.URL, h.Entry.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer using only the context above.")
	return b.String()
}

// dedupeSources keeps one Source per document, in first-appearance order,
// which follows descending score.
func dedupeSources(hits []domain.Scored) []domain.Source {
	seen := make(map[string]struct{}, len(hits))
	out := make([]domain.Source, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.Entry.DocumentID]; ok {
			continue
		}
		seen[h.Entry.DocumentID] = struct{}{}
		out = append(out, h.Entry.Source)
	}
	return out
}
