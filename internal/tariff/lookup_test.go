package tariff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customs-ai/hs-classify/internal/model"
)

type fakeStore struct {
	codes map[string][]model.TariffCode
	asked []string
}

func (s *fakeStore) CodesByHeading(ctx context.Context, heading string) ([]model.TariffCode, error) {
	s.asked = append(s.asked, heading)
	return s.codes[heading], nil
}
func (s *fakeStore) GetAccount(context.Context, string) (*model.CreditAccount, error) {
	return nil, nil
}
func (s *fakeStore) UpsertAccount(context.Context, model.CreditAccount) error { return nil }
func (s *fakeStore) DebitCredit(context.Context, string) (bool, error)        { return false, nil }
func (s *fakeStore) RecordUsage(context.Context, string) error                { return nil }
func (s *fakeStore) SaveClassification(ctx context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error) {
	return &rec, nil
}
func (s *fakeStore) ListClassifications(context.Context, string, int, int) ([]model.HistoryRecord, error) {
	return nil, nil
}
func (s *fakeStore) UpsertTariffCodes(context.Context, []model.TariffCode) (int64, error) {
	return 0, nil
}
func (s *fakeStore) Migrate(context.Context) error { return nil }
func (s *fakeStore) Ping(context.Context) error    { return nil }
func (s *fakeStore) Close() error                  { return nil }

func TestLookupByHeading(t *testing.T) {
	st := &fakeStore{codes: map[string][]model.TariffCode{
		"8471": {{Code: "8471.30.90"}},
	}}
	lookup := NewLookup(st)

	codes, err := lookup.ByHeading(context.Background(), "8471")
	require.NoError(t, err)
	require.Len(t, codes, 1)

	// Dotted and noisy headings normalize before the query.
	codes, err = lookup.ByHeading(context.Background(), "84.71")
	require.NoError(t, err)
	assert.Len(t, codes, 1)
	assert.Equal(t, []string{"8471", "8471"}, st.asked)
}

func TestLookupInvalidHeading(t *testing.T) {
	st := &fakeStore{}
	lookup := NewLookup(st)

	for _, heading := range []string{"", "12", "84715", "abcd"} {
		codes, err := lookup.ByHeading(context.Background(), heading)
		require.NoError(t, err, heading)
		assert.Nil(t, codes, heading)
	}
	assert.Empty(t, st.asked, "invalid headings never reach the store")
}

func TestLookupWithoutStore(t *testing.T) {
	codes, err := NewLookup(nil).ByHeading(context.Background(), "8471")
	require.NoError(t, err)
	assert.Nil(t, codes)
}
