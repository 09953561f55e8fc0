// Package chat answers follow-up questions about a classification result
// or about HS classification in general, streaming the reply token by
// token. It reads reference data but never touches credits or history.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/customs-ai/hs-classify/internal/model"
	"github.com/customs-ai/hs-classify/internal/tariff"
	"github.com/customs-ai/hs-classify/pkg/reasoning"
)

// Context is the classification a conversation is anchored to. A zero
// product description, or the literal code "general", marks a general
// inquiry with no anchoring result.
type Context struct {
	ProductDescription string              `json:"product_description"`
	HSCode             string              `json:"hs_code"`
	HSDescription      string              `json:"hs_description"`
	Confidence         float64             `json:"confidence"`
	Reasoning          string              `json:"reasoning"`
	Alternatives       []model.Alternative `json:"alternatives,omitempty"`
	EdgeCases          []model.EdgeCase    `json:"edge_cases,omitempty"`
}

// General reports whether this context carries no classification result.
func (c Context) General() bool {
	return c.HSCode == "general" || c.ProductDescription == ""
}

// Message is one prior conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Event is one frame of the chat stream, in wire shape.
type Event struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
}

const streamErrorMessage = "Stream error"

// Assistant streams chat completions grounded in a classification context
// and the reference nomenclature.
type Assistant struct {
	ai           reasoning.Client
	lookup       *tariff.Lookup
	model        string
	maxTokens    int64
	historyTurns int
}

// NewAssistant creates an Assistant using the given model.
func NewAssistant(ai reasoning.Client, lookup *tariff.Lookup, modelID string, maxTokens int64, historyTurns int) *Assistant {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	if historyTurns <= 0 {
		historyTurns = 10
	}
	return &Assistant{
		ai:           ai,
		lookup:       lookup,
		model:        modelID,
		maxTokens:    maxTokens,
		historyTurns: historyTurns,
	}
}

// Respond streams the assistant's reply, calling emit per frame. History
// beyond the configured turn window is dropped oldest-first. An emit
// error means the client is gone; Respond stops without a terminal frame.
func (a *Assistant) Respond(ctx context.Context, message string, cctx Context, history []Message, emit func(Event) error) error {
	system := a.systemPrompt(ctx, message, cctx)

	if len(history) > a.historyTurns {
		history = history[len(history)-a.historyTurns:]
	}
	msgs := make([]reasoning.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		msgs = append(msgs, reasoning.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, reasoning.Message{Role: "user", Content: message})

	stream, err := a.ai.CompleteStreaming(ctx, reasoning.Request{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    system,
		Messages:  msgs,
	})
	if err != nil {
		zap.L().Error("chat: stream open failed", zap.Error(err))
		a.emitError(emit)
		return eris.Wrap(err, "chat: open stream")
	}
	defer stream.Close()

	for stream.Next() {
		delta := stream.Delta()
		if delta == "" {
			continue
		}
		if err := emit(Event{Content: delta}); err != nil {
			return eris.Wrap(err, "chat: emit stream event")
		}
	}
	if err := stream.Err(); err != nil {
		zap.L().Error("chat: stream failed mid-reply", zap.Error(err))
		a.emitError(emit)
		return eris.Wrap(err, "chat: stream")
	}
	if err := emit(Event{Done: true}); err != nil {
		return eris.Wrap(err, "chat: emit completion event")
	}
	return nil
}

// systemPrompt assembles the prompt for this turn: the general or
// context-anchored base, plus candidate codes for any heading the user's
// message references.
func (a *Assistant) systemPrompt(ctx context.Context, message string, cctx Context) string {
	var b strings.Builder
	if cctx.General() {
		b.WriteString(generalSystemPrompt)
	} else {
		b.WriteString(contextSystemPrompt)
		b.WriteString("\n")
		b.WriteString(contextBlock(cctx))
	}

	if heading, ok := model.ExtractHeadingRef(message); ok {
		codes, err := a.lookup.ByHeading(ctx, heading)
		if err != nil {
			zap.L().Warn("chat: heading lookup failed", zap.String("heading", heading), zap.Error(err))
		} else if len(codes) > 0 {
			fmt.Fprintf(&b, "\n\nRELATED HS CODES FOR HEADING %s:\n%s", heading, model.FormatCodesForPrompt(codes))
		}
	}
	return b.String()
}

func contextBlock(cctx Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
CLASSIFICATION RESULT:
- Product: %s
- HS Code: %s
- Description: %s
- Confidence: %d%%
- Reasoning: %s
`,
		cctx.ProductDescription,
		cctx.HSCode,
		cctx.HSDescription,
		int(cctx.Confidence*100+0.5),
		cctx.Reasoning,
	)
	if len(cctx.Alternatives) > 0 {
		b.WriteString("\nALTERNATIVES CONSIDERED:\n")
		for _, alt := range cctx.Alternatives {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", alt.HSCode, alt.Description, alt.Reason)
		}
	}
	if len(cctx.EdgeCases) > 0 {
		b.WriteString("\nEDGE CASES:\n")
		for _, ec := range cctx.EdgeCases {
			fmt.Fprintf(&b, "- %s: %s\n", ec.HSCode, ec.Condition)
		}
	}
	return b.String()
}

func (a *Assistant) emitError(emit func(Event) error) {
	if err := emit(Event{Error: streamErrorMessage}); err != nil {
		zap.L().Debug("chat: error event not delivered", zap.Error(err))
	}
}
