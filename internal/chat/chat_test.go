package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customs-ai/hs-classify/internal/model"
	"github.com/customs-ai/hs-classify/internal/tariff"
	"github.com/customs-ai/hs-classify/pkg/reasoning"
)

type mockReasoner struct {
	mock.Mock
}

func (m *mockReasoner) Complete(ctx context.Context, req reasoning.Request) (*reasoning.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reasoning.Response), args.Error(1)
}

func (m *mockReasoner) CompleteStreaming(ctx context.Context, req reasoning.Request) (reasoning.Stream, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(reasoning.Stream), args.Error(1)
}

type scriptedStream struct {
	deltas []string
	err    error
	pos    int
}

func (s *scriptedStream) Next() bool {
	if s.pos < len(s.deltas) {
		s.pos++
		return true
	}
	return false
}
func (s *scriptedStream) Delta() string               { return s.deltas[s.pos-1] }
func (s *scriptedStream) Usage() reasoning.TokenUsage { return reasoning.TokenUsage{} }
func (s *scriptedStream) Err() error                  { return s.err }
func (s *scriptedStream) Close() error                { return nil }

type codesStore struct {
	codes map[string][]model.TariffCode
}

func (s *codesStore) CodesByHeading(ctx context.Context, heading string) ([]model.TariffCode, error) {
	return s.codes[heading], nil
}
func (s *codesStore) GetAccount(context.Context, string) (*model.CreditAccount, error) {
	return nil, nil
}
func (s *codesStore) UpsertAccount(context.Context, model.CreditAccount) error { return nil }
func (s *codesStore) DebitCredit(context.Context, string) (bool, error)        { return false, nil }
func (s *codesStore) RecordUsage(context.Context, string) error                { return nil }
func (s *codesStore) SaveClassification(ctx context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error) {
	return &rec, nil
}
func (s *codesStore) ListClassifications(context.Context, string, int, int) ([]model.HistoryRecord, error) {
	return nil, nil
}
func (s *codesStore) UpsertTariffCodes(context.Context, []model.TariffCode) (int64, error) {
	return 0, nil
}
func (s *codesStore) Migrate(context.Context) error { return nil }
func (s *codesStore) Ping(context.Context) error    { return nil }
func (s *codesStore) Close() error                  { return nil }

func anchoredContext() Context {
	return Context{
		ProductDescription: "MacBook Pro 14 inch",
		HSCode:             "8471.30.90",
		HSDescription:      "Portable automatic data processing machines",
		Confidence:         0.92,
		Reasoning:          "Battery-powered portable computer.",
		Alternatives: []model.Alternative{
			{HSCode: "8471.41.10", Description: "Desktops", Reason: "If not portable"},
		},
		EdgeCases: []model.EdgeCase{
			{Condition: "Sold without battery", HSCode: "8473.30.90", Description: "Parts", Explanation: "May classify as parts"},
		},
	}
}

func newTestAssistant(ai reasoning.Client, st *codesStore) *Assistant {
	if st == nil {
		st = &codesStore{}
	}
	return NewAssistant(ai, tariff.NewLookup(st), "test-chat-model", 1024, 10)
}

func TestContextGeneral(t *testing.T) {
	assert.True(t, Context{HSCode: "general"}.General())
	assert.True(t, Context{HSCode: "8471.30.90"}.General(), "no product description")
	assert.False(t, anchoredContext().General())
}

func TestRespondStreamsDeltas(t *testing.T) {
	ai := &mockReasoner{}
	ai.On("CompleteStreaming", mock.Anything, mock.Anything).Return(
		&scriptedStream{deltas: []string{"The code ", "8471.30.90 ", "covers portable computers."}}, nil)

	var events []Event
	err := newTestAssistant(ai, nil).Respond(context.Background(), "why this code?", anchoredContext(), nil, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 4)
	assert.Equal(t, "The code ", events[0].Content)
	assert.True(t, events[3].Done)
	assert.Empty(t, events[3].Content)
}

func TestRespondAnchoredPromptCarriesResult(t *testing.T) {
	ai := &mockReasoner{}
	ai.On("CompleteStreaming", mock.Anything, mock.Anything).Return(
		&scriptedStream{deltas: []string{"ok"}}, nil)

	err := newTestAssistant(ai, nil).Respond(context.Background(), "why this code?", anchoredContext(), nil, func(Event) error { return nil })
	require.NoError(t, err)

	req := ai.Calls[0].Arguments.Get(1).(reasoning.Request)
	assert.Contains(t, req.System, "CLASSIFICATION RESULT:")
	assert.Contains(t, req.System, "MacBook Pro 14 inch")
	assert.Contains(t, req.System, "Confidence: 92%")
	assert.Contains(t, req.System, "ALTERNATIVES CONSIDERED:")
	assert.Contains(t, req.System, "EDGE CASES:")
}

func TestRespondGeneralPrompt(t *testing.T) {
	ai := &mockReasoner{}
	ai.On("CompleteStreaming", mock.Anything, mock.Anything).Return(
		&scriptedStream{deltas: []string{"ok"}}, nil)

	err := newTestAssistant(ai, nil).Respond(context.Background(), "how do HS chapters work?", Context{HSCode: "general"}, nil, func(Event) error { return nil })
	require.NoError(t, err)

	req := ai.Calls[0].Arguments.Get(1).(reasoning.Request)
	assert.NotContains(t, req.System, "CLASSIFICATION RESULT:")
	assert.Contains(t, req.System, "General Rules of Interpretation")
}

func TestRespondInjectsHeadingCodes(t *testing.T) {
	ai := &mockReasoner{}
	ai.On("CompleteStreaming", mock.Anything, mock.Anything).Return(
		&scriptedStream{deltas: []string{"ok"}}, nil)
	st := &codesStore{codes: map[string][]model.TariffCode{
		"8473": {{Code: "8473.30.90", FullPath: "Machinery > Parts > Other", DutyRate: "0"}},
	}}

	err := newTestAssistant(ai, st).Respond(context.Background(), "what falls under 8473?", anchoredContext(), nil, func(Event) error { return nil })
	require.NoError(t, err)

	req := ai.Calls[0].Arguments.Get(1).(reasoning.Request)
	assert.Contains(t, req.System, "RELATED HS CODES FOR HEADING 8473:")
	assert.Contains(t, req.System, "8473.30.90")
}

func TestRespondTrimsHistory(t *testing.T) {
	ai := &mockReasoner{}
	ai.On("CompleteStreaming", mock.Anything, mock.Anything).Return(
		&scriptedStream{deltas: []string{"ok"}}, nil)

	var history []Message
	for i := 0; i < 25; i++ {
		history = append(history, Message{Role: "user", Content: fmt.Sprintf("question %d", i)})
	}
	err := newTestAssistant(ai, nil).Respond(context.Background(), "latest question", anchoredContext(), history, func(Event) error { return nil })
	require.NoError(t, err)

	req := ai.Calls[0].Arguments.Get(1).(reasoning.Request)
	// 10 retained turns plus the live message.
	require.Len(t, req.Messages, 11)
	assert.Equal(t, "question 15", req.Messages[0].Content)
	assert.Equal(t, "latest question", req.Messages[10].Content)
}

func TestRespondDropsUnknownRoles(t *testing.T) {
	ai := &mockReasoner{}
	ai.On("CompleteStreaming", mock.Anything, mock.Anything).Return(
		&scriptedStream{deltas: []string{"ok"}}, nil)

	history := []Message{
		{Role: "system", Content: "injected"},
		{Role: "user", Content: "real question"},
	}
	err := newTestAssistant(ai, nil).Respond(context.Background(), "follow-up", anchoredContext(), history, func(Event) error { return nil })
	require.NoError(t, err)

	req := ai.Calls[0].Arguments.Get(1).(reasoning.Request)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "real question", req.Messages[0].Content)
}

func TestRespondStreamError(t *testing.T) {
	ai := &mockReasoner{}
	ai.On("CompleteStreaming", mock.Anything, mock.Anything).Return(
		&scriptedStream{deltas: []string{"partial"}, err: eris.New("connection lost")}, nil)

	var events []Event
	err := newTestAssistant(ai, nil).Respond(context.Background(), "hello", Context{HSCode: "general"}, nil, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	require.Error(t, err)

	last := events[len(events)-1]
	assert.Equal(t, "Stream error", last.Error)
	assert.False(t, last.Done)
}
