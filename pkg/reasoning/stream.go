package reasoning

import (
	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/rotisserie/eris"
)

// sdkStream adapts the SDK's event stream to the text-delta Stream
// interface. Non-text events (tool use, content block boundaries) are
// consumed silently so callers only ever see text.
type sdkStream struct {
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]
	delta  string
	usage  TokenUsage
	err    error
}

func (s *sdkStream) Next() bool {
	for s.stream.Next() {
		event := s.stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.MessageStartEvent:
			s.usage.InputTokens = ev.Message.Usage.InputTokens
		case sdk.ContentBlockDeltaEvent:
			if d, ok := ev.Delta.AsAny().(sdk.TextDelta); ok {
				s.delta = d.Text
				return true
			}
		case sdk.MessageDeltaEvent:
			s.usage.OutputTokens = ev.Usage.OutputTokens
		}
	}
	return false
}

func (s *sdkStream) Delta() string {
	return s.delta
}

func (s *sdkStream) Usage() TokenUsage {
	return s.usage
}

func (s *sdkStream) Err() error {
	if s.err != nil {
		return s.err
	}
	if err := s.stream.Err(); err != nil {
		return eris.Wrap(err, "reasoning: stream")
	}
	return nil
}

func (s *sdkStream) Close() error {
	return s.stream.Close()
}
