// Package tariff provides read access to the AHTN reference nomenclature:
// heading-scoped candidate lookup for the pipeline and bulk loading of the
// reference table.
package tariff

import (
	"context"

	"go.uber.org/zap"

	"github.com/customs-ai/hs-classify/internal/model"
	"github.com/customs-ai/hs-classify/internal/store"
)

// Lookup answers "which full codes exist under this 4-digit heading".
// Pure read; zero matches is a valid outcome that callers must treat as
// a fallback signal, not an error.
type Lookup struct {
	store store.Store
}

// NewLookup creates a Lookup over the given store.
func NewLookup(st store.Store) *Lookup {
	return &Lookup{store: st}
}

// ByHeading returns every reference code under heading, ascending by code.
// A heading that is not exactly 4 digits, or one with no codes, yields an
// empty list.
func (l *Lookup) ByHeading(ctx context.Context, heading string) ([]model.TariffCode, error) {
	cleaned, ok := model.NormalizeHeading(heading)
	if !ok {
		return nil, nil
	}
	if l.store == nil {
		// Dev mode without a database: no reference data available.
		return nil, nil
	}

	codes, err := l.store.CodesByHeading(ctx, cleaned)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("tariff: heading lookup",
		zap.String("heading", cleaned),
		zap.Int("candidates", len(codes)),
	)
	return codes, nil
}
