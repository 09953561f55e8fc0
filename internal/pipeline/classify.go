package pipeline

import (
	"fmt"

	"github.com/customs-ai/hs-classify/internal/model"
	"github.com/customs-ai/hs-classify/pkg/reasoning"
)

// Strategy selects which classifier variant drives the streaming call.
type Strategy string

const (
	// StrategyConstrained restricts the primary code to the candidates
	// enumerated under the identified heading.
	StrategyConstrained Strategy = "constrained"
	// StrategyFallback classifies against the full nomenclature; used
	// when heading identification misses or yields no candidates.
	StrategyFallback Strategy = "fallback"
)

// Classifier builds the reasoning-service requests for both strategies.
type Classifier struct {
	model         string
	maxTokens     int64
	webSearchUses int64
}

// NewClassifier creates a Classifier for the given model.
func NewClassifier(modelID string, maxTokens, webSearchUses int64) *Classifier {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Classifier{model: modelID, maxTokens: maxTokens, webSearchUses: webSearchUses}
}

// ConstrainedRequest scopes the selectable primary code to candidates.
// Callers must not pass an empty candidate set; use FallbackRequest instead.
func (c *Classifier) ConstrainedRequest(description string, ident *model.HeadingIdentification, candidates []model.TariffCode) reasoning.Request {
	system := classifyBasePrompt + fmt.Sprintf(constrainedPromptSuffix,
		ident.ProductName,
		ident.Heading,
		ident.HeadingDescription,
		model.FormatCodesForPrompt(candidates),
	)
	return c.request(system, description)
}

// FallbackRequest classifies with no candidate restriction.
func (c *Classifier) FallbackRequest(description string) reasoning.Request {
	return c.request(classifyBasePrompt, description)
}

func (c *Classifier) request(system, description string) reasoning.Request {
	return reasoning.Request{
		Model:         c.model,
		MaxTokens:     c.maxTokens,
		System:        system,
		WebSearch:     true,
		WebSearchUses: c.webSearchUses,
		Messages: []reasoning.Message{
			{Role: "user", Content: fmt.Sprintf(classifyUserPrompt, description)},
		},
	}
}
