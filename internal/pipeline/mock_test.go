package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/customs-ai/hs-classify/internal/model"
	"github.com/customs-ai/hs-classify/pkg/reasoning"
)

// mockReasoner is a testify mock for the reasoning client.
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

// scriptedStream replays a fixed sequence of deltas, then optionally fails.
type scriptedStream struct {
	deltas []string
	err    error
	usage  reasoning.TokenUsage
	pos    int
	closed bool
}

func (s *scriptedStream) Next() bool {
	if s.pos < len(s.deltas) {
		s.pos++
		return true
	}
	return false
}

func (s *scriptedStream) Delta() string {
	return s.deltas[s.pos-1]
}

func (s *scriptedStream) Usage() reasoning.TokenUsage { return s.usage }
func (s *scriptedStream) Err() error                  { return s.err }
func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

// chunk splits s into n-byte deltas to mimic streaming.
func chunk(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// stubStore serves canned reference codes; every other operation is a
// no-op. Satisfies store.Store for lookup wiring in pipeline tests.
type stubStore struct {
	codes      map[string][]model.TariffCode
	codesErr   error
	lastLookup string
}

func (s *stubStore) CodesByHeading(ctx context.Context, heading string) ([]model.TariffCode, error) {
	s.lastLookup = heading
	if s.codesErr != nil {
		return nil, s.codesErr
	}
	return s.codes[heading], nil
}

func (s *stubStore) GetAccount(context.Context, string) (*model.CreditAccount, error) {
	return nil, nil
}
func (s *stubStore) UpsertAccount(context.Context, model.CreditAccount) error { return nil }
func (s *stubStore) DebitCredit(context.Context, string) (bool, error)        { return true, nil }
func (s *stubStore) RecordUsage(context.Context, string) error                { return nil }
func (s *stubStore) SaveClassification(ctx context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error) {
	return &rec, nil
}
func (s *stubStore) ListClassifications(context.Context, string, int, int) ([]model.HistoryRecord, error) {
	return nil, nil
}
func (s *stubStore) UpsertTariffCodes(context.Context, []model.TariffCode) (int64, error) {
	return 0, nil
}
func (s *stubStore) Migrate(context.Context) error { return nil }
func (s *stubStore) Ping(context.Context) error    { return nil }
func (s *stubStore) Close() error                  { return nil }
