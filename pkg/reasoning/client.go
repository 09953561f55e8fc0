// Package reasoning wraps a completion-generation service with streaming
// output and an optional web-lookup tool behind a provider-neutral
// interface. The pipeline depends only on the types in this package.
package reasoning

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/customs-ai/hs-classify/internal/resilience"
)

// Client defines the reasoning-service operations used by the pipeline.
type Client interface {
	// Complete performs a blocking completion and returns the full text.
	Complete(ctx context.Context, req Request) (*Response, error)
	// CompleteStreaming starts a completion whose text arrives as a
	// sequence of deltas. The stream's lifetime is bound to ctx.
	CompleteStreaming(ctx context.Context, req Request) (Stream, error)
}

// Request is our own request type, independent of any provider's API shape.
type Request struct {
	Model       string
	MaxTokens   int64
	System      string
	Messages    []Message
	Temperature *float64
	// WebSearch exposes the provider's web lookup tool so the model can
	// resolve brand names and unfamiliar terms.
	WebSearch bool
	// WebSearchUses caps tool invocations per request. Zero means the
	// provider default.
	WebSearchUses int64
}

// Message is a single conversational turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Response is the complete output of a blocking completion.
type Response struct {
	Text       string
	StopReason string
	Usage      TokenUsage
}

// TokenUsage tracks token consumption for cost attribution.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// Stream yields text deltas as they arrive. Callers must Close it.
type Stream interface {
	// Next advances to the next delta. It returns false at end of stream
	// or on error; check Err afterwards.
	Next() bool
	// Delta returns the text fragment for the current event. May be empty
	// for non-text events.
	Delta() string
	// Usage returns token counts accumulated so far; final once Next has
	// returned false with a nil Err.
	Usage() TokenUsage
	Err() error
	Close() error
}

// Option configures the client.
type Option func(*sdkClient)

// WithRateLimit bounds outbound request rate across all callers sharing
// this client.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *sdkClient) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithBaseURL overrides the provider endpoint (useful for proxies and tests).
func WithBaseURL(url string) Option {
	return func(c *sdkClient) {
		c.requestOpts = append(c.requestOpts, option.WithBaseURL(url))
	}
}

type sdkClient struct {
	client      sdk.Client
	limiter     *rate.Limiter
	requestOpts []option.RequestOption
}

// NewClient creates a reasoning client backed by the Anthropic SDK.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{}
	for _, opt := range opts {
		opt(c)
	}
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, c.requestOpts...)
	c.client = sdk.NewClient(clientOpts...)
	return c
}

func (c *sdkClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *sdkClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "reasoning: rate limit wait")
	}

	msg, err := c.client.Messages.New(ctx, toParams(req))
	if err != nil {
		return nil, wrapAPIError(err, "reasoning: create message")
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}

	return &Response{
		Text:       strings.Join(parts, "\n"),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

func (c *sdkClient) CompleteStreaming(ctx context.Context, req Request) (Stream, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "reasoning: rate limit wait")
	}

	stream := c.client.Messages.NewStreaming(ctx, toParams(req))
	if err := stream.Err(); err != nil {
		return nil, wrapAPIError(err, "reasoning: start stream")
	}
	return &sdkStream{stream: stream}, nil
}

// wrapAPIError marks provider errors carrying a retryable HTTP status
// (rate limits, server-side failures) as transient so retrying callers
// try again instead of giving up on the first 429 or 5xx.
func wrapAPIError(err error, msg string) error {
	wrapped := eris.Wrap(err, msg)
	var apierr *sdk.Error
	if errors.As(err, &apierr) && resilience.IsTransientHTTPStatus(apierr.StatusCode) {
		return resilience.NewTransientError(wrapped, apierr.StatusCode)
	}
	return wrapped
}

func toParams(req Request) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	if req.WebSearch {
		tool := sdk.WebSearchTool20250305Param{}
		if req.WebSearchUses > 0 {
			tool.MaxUses = sdk.Int(req.WebSearchUses)
		}
		params.Tools = []sdk.ToolUnionParam{{OfWebSearchTool20250305: &tool}}
	}
	return params
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			out[i] = sdk.NewAssistantMessage(block)
		default:
			out[i] = sdk.NewUserMessage(block)
		}
	}
	return out
}
