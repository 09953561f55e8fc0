package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customs-ai/hs-classify/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLiteAccountRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	account, err := st.GetAccount(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, account)

	require.NoError(t, st.UpsertAccount(ctx, model.CreditAccount{
		UserID: "user-1", Remaining: 300, Used: 0, Plan: "growth",
	}))

	account, err = st.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, 300, account.Remaining)
	assert.Equal(t, "growth", account.Plan)

	// Upsert on the same external id updates in place.
	require.NoError(t, st.UpsertAccount(ctx, model.CreditAccount{
		UserID: "user-1", Remaining: 1000, Used: 12, Plan: "professional",
	}))
	account, err = st.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1000, account.Remaining)
	assert.Equal(t, 12, account.Used)
	assert.Equal(t, "professional", account.Plan)
}

func TestSQLiteDebitCredit(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertAccount(ctx, model.CreditAccount{
		UserID: "user-1", Remaining: 2, Plan: "free",
	}))

	for i := 0; i < 2; i++ {
		debited, err := st.DebitCredit(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, debited)
	}

	// Third debit finds no positive balance.
	debited, err := st.DebitCredit(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, debited)

	account, err := st.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, account.Remaining)
	assert.Equal(t, 2, account.Used)
}

func TestSQLiteDebitUnknownUser(t *testing.T) {
	st := newTestSQLite(t)
	debited, err := st.DebitCredit(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, debited)
}

func TestSQLiteRecordUsage(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertAccount(ctx, model.CreditAccount{
		UserID: "ent-user", Remaining: model.CreditsUnlimited, Plan: "enterprise",
	}))
	require.NoError(t, st.RecordUsage(ctx, "ent-user"))

	account, err := st.GetAccount(ctx, "ent-user")
	require.NoError(t, err)
	assert.Equal(t, model.CreditsUnlimited, account.Remaining, "unmetered balance untouched")
	assert.Equal(t, 1, account.Used)
}

func TestSQLiteClassificationHistory(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	rec := model.HistoryRecord{
		UserID:        "user-1",
		Description:   "macbook pro m3",
		HSCode:        "8471.30.90",
		HSDescription: "Portable automatic data processing machines",
		Confidence:    0.92,
		Reasoning:     "Laptop computer.",
		Alternatives: []model.Alternative{
			{HSCode: "8471.41.10", Description: "Desktops", Reason: "If not portable"},
		},
		EdgeCases: []model.EdgeCase{
			{Condition: "Sold without battery", HSCode: "8473.30.90", Description: "Parts", Explanation: "May classify as parts"},
		},
		TokensUsed: 1500,
	}
	saved, err := st.SaveClassification(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	history, err := st.ListClassifications(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	got := history[0]
	assert.Equal(t, "8471.30.90", got.HSCode)
	require.Len(t, got.Alternatives, 1)
	assert.Equal(t, "8471.41.10", got.Alternatives[0].HSCode)
	require.Len(t, got.EdgeCases, 1)
	assert.Equal(t, "Sold without battery", got.EdgeCases[0].Condition)

	// Another user sees nothing.
	history, err = st.ListClassifications(ctx, "user-2", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSQLiteHistoryPagination(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := st.SaveClassification(ctx, model.HistoryRecord{
			UserID:      "user-1",
			Description: "item",
			HSCode:      "8471.30.90",
			Confidence:  0.9,
		})
		require.NoError(t, err)
	}

	page, err := st.ListClassifications(ctx, "user-1", 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := st.ListClassifications(ctx, "user-1", 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

func TestSQLiteTariffCodes(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	codes := []model.TariffCode{
		{Code: "84713090", Description: "Other portable machines", FullPath: "Machinery > Computers > Portable > Other", DutyRate: "0"},
		{Code: "8471.41.10", Description: "Desktop computers", FullPath: "Machinery > Computers > Desktop", DutyRate: "0"},
		{Code: "0810.60.00", Description: "Durians", FullPath: "Fruit > Other fresh > Durians", DutyRate: "40"},
	}
	n, err := st.UpsertTariffCodes(ctx, codes)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := st.CodesByHeading(ctx, "8471")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Stored and returned in dotted form, ascending.
	assert.Equal(t, "8471.30.90", got[0].Code)
	assert.Equal(t, "8471.41.10", got[1].Code)

	// Re-import updates rather than duplicates.
	codes[0].DutyRate = "5"
	_, err = st.UpsertTariffCodes(ctx, codes)
	require.NoError(t, err)
	got, err = st.CodesByHeading(ctx, "8471")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "5", got[0].DutyRate)

	got, err = st.CodesByHeading(ctx, "9999")
	require.NoError(t, err)
	assert.Empty(t, got)
}
