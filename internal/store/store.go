// Package store persists credit accounts, classification history, and the
// AHTN reference table behind a driver-neutral interface.
package store

import (
	"context"

	"github.com/customs-ai/hs-classify/internal/model"
)

// Store defines the persistence interface for the classification service.
type Store interface {
	// Accounts. GetAccount returns (nil, nil) for an unknown user; the
	// metering gate treats that as an implicit free-trial account.
	GetAccount(ctx context.Context, userID string) (*model.CreditAccount, error)
	UpsertAccount(ctx context.Context, account model.CreditAccount) error

	// DebitCredit atomically decrements a positive balance and bumps the
	// usage counter. Returns false when the balance was already zero,
	// closing the race between two concurrent check-then-commit requests.
	DebitCredit(ctx context.Context, userID string) (bool, error)

	// RecordUsage bumps the usage counter only, for unmetered plans.
	RecordUsage(ctx context.Context, userID string) error

	// History
	SaveClassification(ctx context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error)
	ListClassifications(ctx context.Context, userID string, limit, offset int) ([]model.HistoryRecord, error)

	// Reference data
	CodesByHeading(ctx context.Context, heading string) ([]model.TariffCode, error)
	UpsertTariffCodes(ctx context.Context, codes []model.TariffCode) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
