// Package generation provides the optional LLM answer-generation capability.
//
// Generation is never required for the pipeline to function: when no API
// key is configured, the capability is Absent and answers degrade to raw
// retrieval output.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrGenerationFailed indicates the generation model returned an error or
// an unusable response.
var ErrGenerationFailed = errors.New("generation failed")

// Generator produces a natural-language answer from retrieved profile
// narratives and the user's question.
type Generator interface {
	Generate(ctx context.Context, contexts []string, question string) (string, error)
}

// Capability wraps an optional Generator. The zero value is Absent.
type Capability struct {
	generator Generator
}

// NewCapability wraps a generator. A nil generator yields an Absent
// capability.
func NewCapability(g Generator) Capability {
	return Capability{generator: g}
}

// Absent returns a Capability with no generator.
func Absent() Capability {
	return Capability{}
}

// Available reports whether a generator is configured.
func (c Capability) Available() bool {
	return c.generator != nil
}

// Get returns the wrapped generator, or nil when absent.
func (c Capability) Get() Generator {
	return c.generator
}

// buildPrompt assembles the advisor prompt from retrieved narratives and
// the question. Contexts are separated by blank lines in retrieval order.
func buildPrompt(contexts []string, question string) string {
	var b strings.Builder
	b.WriteString("You are a financial advisor AI assistant. Based on the following ")
	b.WriteString("financial profiles from our database, answer the user's question.\n\n")
	b.WriteString("Context (similar financial profiles):\n")
	b.WriteString(strings.Join(contexts, "\n\n"))
	b.WriteString("\n\nUser Question: ")
	b.WriteString(question)
	b.WriteString("\n\nProvide a helpful, specific answer grounded in the profiles above. ")
	b.WriteString("If the profiles do not contain enough information, say so.")
	return b.String()
}

// FallbackAnswer is the sentinel prefix used when generation is absent or
// has failed; the caller appends the retrieved profiles.
const FallbackAnswer = "Generation model unavailable. Here are the most relevant financial profiles:"

// FormatFallback renders the degraded answer from retrieved narratives.
func FormatFallback(contexts []string) string {
	var b strings.Builder
	b.WriteString(FallbackAnswer)
	for i, c := range contexts {
		b.WriteString(fmt.Sprintf("\n\n[%d] %s", i+1, c))
	}
	return b.String()
}
