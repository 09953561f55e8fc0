package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/customs-ai/hs-classify/internal/model"
	"github.com/customs-ai/hs-classify/internal/tariff"
	"github.com/customs-ai/hs-classify/pkg/reasoning"
)

// State names the phase a classification run is in. Emitted in logs only;
// clients see the event stream, not the state machine.
type State string

const (
	StateIdentifying State = "identifying"
	StateLookup      State = "candidate_lookup"
	StateConstrained State = "classifying_constrained"
	StateFallback    State = "classifying_fallback"
	StateComplete    State = "complete"
	StateFailed      State = "failed"
)

// Event is one frame of the classification stream, in wire shape.
// Incremental frames carry FullText (and Partial when extraction found
// anything); the terminal frame carries either Done+Result or Error.
type Event struct {
	FullText string                      `json:"fullText,omitempty"`
	Partial  *model.PartialResult        `json:"partial,omitempty"`
	Done     bool                        `json:"done,omitempty"`
	Result   *model.ClassificationResult `json:"result,omitempty"`
	Error    string                      `json:"error,omitempty"`
}

// Outcome is what a finished run hands to the caller for metering and
// persistence. Nil Result means the run failed and nothing may be
// committed.
type Outcome struct {
	Result         *model.ClassificationResult
	Strategy       Strategy
	Identification *model.HeadingIdentification
	Usage          reasoning.TokenUsage
}

// Orchestrator runs one classification end to end: identify the heading,
// look up candidate codes, stream the constrained or fallback classifier,
// and assemble the final result from the complete buffer.
type Orchestrator struct {
	ai         reasoning.Client
	identifier *Identifier
	lookup     *tariff.Lookup
	classifier *Classifier
	timeout    time.Duration
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(ai reasoning.Client, identifier *Identifier, lookup *tariff.Lookup, classifier *Classifier, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{
		ai:         ai,
		identifier: identifier,
		lookup:     lookup,
		classifier: classifier,
		timeout:    timeout,
	}
}

// streamErrorMessage and parseErrorMessage are the only two failure texts
// clients ever see mid-stream. Provider detail stays in the logs.
const (
	streamErrorMessage = "Stream error occurred"
	parseErrorMessage  = "Failed to parse classification result"
)

// Run executes one classification, calling emit for every stream frame.
// An emit error means the client is gone: Run stops immediately without a
// terminal frame and returns the error. Any other failure emits an Error
// frame first, then returns a non-nil error. The returned Outcome is
// non-nil only on success, and only then may credits be committed.
func (o *Orchestrator) Run(ctx context.Context, description string, emit func(Event) error) (*Outcome, error) {
	started := time.Now()

	zap.L().Info("classify: run started", zap.String("state", string(StateIdentifying)))
	ident, ok := o.identifier.Identify(ctx, description)

	strategy := StrategyFallback
	var candidates []model.TariffCode
	if ok {
		zap.L().Debug("classify: heading identified",
			zap.String("state", string(StateLookup)),
			zap.String("heading", ident.Heading),
			zap.String("product", ident.ProductName),
		)
		var err error
		candidates, err = o.lookup.ByHeading(ctx, ident.Heading)
		if err != nil {
			// Reference data unavailable is not fatal; classify unscoped.
			zap.L().Warn("classify: candidate lookup failed, falling back", zap.Error(err))
			candidates = nil
		}
		if len(candidates) > 0 {
			strategy = StrategyConstrained
		}
	}

	var req reasoning.Request
	if strategy == StrategyConstrained {
		zap.L().Info("classify: constrained strategy",
			zap.String("state", string(StateConstrained)),
			zap.String("heading", ident.Heading),
			zap.Int("candidates", len(candidates)),
		)
		req = o.classifier.ConstrainedRequest(description, ident, candidates)
	} else {
		zap.L().Info("classify: fallback strategy", zap.String("state", string(StateFallback)))
		req = o.classifier.FallbackRequest(description)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	stream, err := o.ai.CompleteStreaming(ctx, req)
	if err != nil {
		zap.L().Error("classify: stream open failed", zap.Error(err))
		o.emitError(emit, streamErrorMessage)
		return nil, eris.Wrap(err, "pipeline: open classification stream")
	}
	defer stream.Close()

	var buffer string
	for stream.Next() {
		delta := stream.Delta()
		if delta == "" {
			continue
		}
		buffer += delta

		ev := Event{FullText: buffer}
		if partial := ExtractPartial(buffer); !partial.Empty() {
			ev.Partial = &partial
		}
		if err := emit(ev); err != nil {
			// Client disconnected mid-stream. Abandon the run; no terminal
			// frame, no commit.
			return nil, eris.Wrap(err, "pipeline: emit stream event")
		}
	}
	if err := stream.Err(); err != nil {
		zap.L().Error("classify: stream failed mid-run",
			zap.String("state", string(StateFailed)),
			zap.Error(err),
		)
		o.emitError(emit, streamErrorMessage)
		return nil, eris.Wrap(err, "pipeline: classification stream")
	}

	result, err := o.assemble(buffer, strategy, candidates)
	if err != nil {
		zap.L().Error("classify: result rejected",
			zap.String("state", string(StateFailed)),
			zap.String("strategy", string(strategy)),
			zap.Error(err),
		)
		o.emitError(emit, parseErrorMessage)
		return nil, err
	}

	if err := emit(Event{Done: true, Result: result}); err != nil {
		return nil, eris.Wrap(err, "pipeline: emit completion event")
	}

	usage := stream.Usage()
	zap.L().Info("classify: run complete",
		zap.String("state", string(StateComplete)),
		zap.String("strategy", string(strategy)),
		zap.String("hs_code", result.PrimaryHSCode),
		zap.Float64("confidence", result.Confidence),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens),
		zap.Duration("elapsed", time.Since(started)),
	)
	return &Outcome{
		Result:         result,
		Strategy:       strategy,
		Identification: ident,
		Usage:          usage,
	}, nil
}

// assemble parses the complete buffer into a validated result. Constrained
// runs additionally require the primary code to come from the candidate
// set; a code from outside it is treated the same as unparseable output.
func (o *Orchestrator) assemble(buffer string, strategy Strategy, candidates []model.TariffCode) (*model.ClassificationResult, error) {
	var result model.ClassificationResult
	if err := json.Unmarshal([]byte(cleanJSON(buffer)), &result); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse classification result")
	}
	result.Clamp()
	if err := result.Validate(); err != nil {
		return nil, eris.Wrap(err, "pipeline: validate classification result")
	}
	if strategy == StrategyConstrained && !codeInSet(result.PrimaryHSCode, candidates) {
		return nil, eris.Errorf("pipeline: primary code %s not in candidate set", result.PrimaryHSCode)
	}
	return &result, nil
}

func (o *Orchestrator) emitError(emit func(Event) error, msg string) {
	if err := emit(Event{Error: msg}); err != nil {
		zap.L().Debug("classify: error event not delivered", zap.Error(err))
	}
}

func codeInSet(code string, candidates []model.TariffCode) bool {
	for _, c := range candidates {
		if c.Dotted() == code || c.Code == code {
			return true
		}
	}
	return false
}
