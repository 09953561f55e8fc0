package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/customs-ai/hs-classify/internal/model"
	"github.com/customs-ai/hs-classify/internal/resilience"
	"github.com/customs-ai/hs-classify/pkg/reasoning"
)

// Identifier is the first-pass reasoning step: resolve a free-text
// description (brand names and slang included) to a product identity and
// a candidate 4-digit heading. Cheap and low-latency: it picks the
// search scope, not the final answer.
type Identifier struct {
	ai            reasoning.Client
	model         string
	maxTokens     int64
	webSearchUses int64
	timeout       time.Duration
}

// NewIdentifier creates an Identifier using the given model.
func NewIdentifier(ai reasoning.Client, modelID string, maxTokens, webSearchUses int64, timeout time.Duration) *Identifier {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Identifier{
		ai:            ai,
		model:         modelID,
		maxTokens:     maxTokens,
		webSearchUses: webSearchUses,
		timeout:       timeout,
	}
}

// Identify maps description to a heading. The second return value is
// false for every kind of miss: provider error, unparseable output, or
// a heading that is not exactly 4 digits. A miss is a signal to use the
// fallback strategy, never a fatal error.
func (id *Identifier) Identify(ctx context.Context, description string) (*model.HeadingIdentification, bool) {
	ctx, cancel := context.WithTimeout(ctx, id.timeout)
	defer cancel()

	zero := 0.0
	req := reasoning.Request{
		Model:         id.model,
		MaxTokens:     id.maxTokens,
		System:        identifySystemPrompt,
		Temperature:   &zero,
		WebSearch:     true,
		WebSearchUses: id.webSearchUses,
		Messages: []reasoning.Message{
			{Role: "user", Content: fmt.Sprintf(identifyUserPrompt, description)},
		},
	}

	var resp *reasoning.Response
	retryCfg := resilience.RetryConfig{
		MaxAttempts: 2,
		OnRetry:     resilience.RetryLogger("anthropic", "identify"),
	}
	err := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		var callErr error
		resp, callErr = id.ai.Complete(ctx, req)
		return callErr
	})
	if err != nil {
		zap.L().Warn("identify: reasoning call failed, falling back", zap.Error(err))
		return nil, false
	}

	obj, ok := firstJSONObject(resp.Text)
	if !ok {
		zap.L().Warn("identify: no JSON object in response")
		return nil, false
	}

	var ident model.HeadingIdentification
	if err := json.Unmarshal([]byte(obj), &ident); err != nil {
		zap.L().Warn("identify: unparseable response", zap.Error(err))
		return nil, false
	}

	heading, ok := model.NormalizeHeading(ident.Heading)
	if !ok {
		zap.L().Info("identify: heading not 4 digits, falling back",
			zap.String("raw_heading", ident.Heading),
		)
		return nil, false
	}
	ident.Heading = heading

	if ident.ProductName == "" {
		ident.ProductName = description
	}

	zap.L().Debug("identify: resolved heading",
		zap.String("product", ident.ProductName),
		zap.String("heading", ident.Heading),
	)
	return &ident, true
}
