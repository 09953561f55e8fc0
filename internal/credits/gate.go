// Package credits is the usage metering gate: a pre-flight balance check
// before any reasoning tokens are spent, and a single post-success commit
// that debits metered plans and records history. A failed or abandoned
// classification never costs a credit.
package credits

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/customs-ai/hs-classify/internal/model"
	"github.com/customs-ai/hs-classify/internal/store"
)

// Messages returned to clients by Check. Fixed strings; the frontend
// matches on them.
const (
	msgDevMode   = "Development mode - unlimited"
	msgFreeTrial = "Free trial"
	msgUnlimited = "Unlimited classifications"
	msgNoCredits = "No credits remaining. Please upgrade your plan."
	msgOK        = "OK"

	devPlan  = "dev"
	freePlan = "free"
)

// Gate meters classification usage. A nil store means development mode:
// everything is allowed and nothing is recorded.
type Gate struct {
	store    store.Store
	failOpen bool
}

// NewGate creates a Gate over st. failOpen makes store errors during the
// pre-flight check allow the request instead of rejecting it; production
// deployments keep it off.
func NewGate(st store.Store, failOpen bool) *Gate {
	return &Gate{store: st, failOpen: failOpen}
}

// Check decides whether userID may start a classification. It never
// mutates the balance. An unknown user is an implicit free-trial account
// with the full starting balance.
func (g *Gate) Check(ctx context.Context, userID string) (model.CreditCheck, error) {
	if g.store == nil {
		return model.CreditCheck{
			Allowed:   true,
			Remaining: model.CreditsUnlimited,
			Plan:      devPlan,
			Message:   msgDevMode,
		}, nil
	}

	account, err := g.store.GetAccount(ctx, userID)
	if err != nil {
		if g.failOpen {
			zap.L().Warn("credits: check failed open", zap.Error(err))
			return model.CreditCheck{
				Allowed:   true,
				Remaining: model.CreditsUnlimited,
				Plan:      devPlan,
				Message:   msgDevMode,
			}, nil
		}
		return model.CreditCheck{}, eris.Wrap(err, "credits: load account")
	}
	if account == nil {
		return model.CreditCheck{
			Allowed:   true,
			Remaining: model.FreeTrialCredits,
			Plan:      freePlan,
			Message:   msgFreeTrial,
		}, nil
	}
	if account.Unlimited() {
		return model.CreditCheck{
			Allowed:   true,
			Remaining: model.CreditsUnlimited,
			Plan:      account.Plan,
			Message:   msgUnlimited,
		}, nil
	}
	if account.Remaining <= 0 {
		return model.CreditCheck{
			Allowed:   false,
			Remaining: 0,
			Plan:      account.Plan,
			Message:   msgNoCredits,
		}, nil
	}
	return model.CreditCheck{
		Allowed:   true,
		Remaining: account.Remaining,
		Plan:      account.Plan,
		Message:   msgOK,
	}, nil
}

// Balance reports the account state shown to the user. Unknown users see
// the implicit free-trial account; dev mode reports unlimited.
func (g *Gate) Balance(ctx context.Context, userID string) (model.CreditAccount, error) {
	if g.store == nil {
		return model.CreditAccount{
			UserID:    userID,
			Remaining: model.CreditsUnlimited,
			Plan:      devPlan,
		}, nil
	}
	account, err := g.store.GetAccount(ctx, userID)
	if err != nil {
		return model.CreditAccount{}, eris.Wrap(err, "credits: load account")
	}
	if account == nil {
		return model.CreditAccount{
			UserID:    userID,
			Remaining: model.FreeTrialCredits,
			Plan:      freePlan,
		}, nil
	}
	return *account, nil
}

// Commit settles a successful classification: debit one credit on metered
// plans (or bump usage only on unmetered ones) and persist the history
// record. Called exactly once per delivered result. History persistence
// failures are logged, not returned; the user already has their answer.
func (g *Gate) Commit(ctx context.Context, userID string, rec model.HistoryRecord) error {
	if g.store == nil {
		return nil
	}

	account, err := g.store.GetAccount(ctx, userID)
	if err != nil {
		return eris.Wrap(err, "credits: load account for commit")
	}
	switch {
	case account == nil:
		// User never persisted an account row; nothing to debit and no
		// owner row for history.
		zap.L().Debug("credits: commit for unknown account skipped",
			zap.String("user_id", userID))
		return nil
	case account.Unlimited():
		if err := g.store.RecordUsage(ctx, userID); err != nil {
			return eris.Wrap(err, "credits: record usage")
		}
	default:
		debited, err := g.store.DebitCredit(ctx, userID)
		if err != nil {
			return eris.Wrap(err, "credits: debit credit")
		}
		if !debited {
			// Balance hit zero between check and commit. The result was
			// already delivered, so swallow the race and record it.
			zap.L().Warn("credits: balance exhausted between check and commit",
				zap.String("user_id", userID))
		}
	}

	if _, err := g.store.SaveClassification(ctx, rec); err != nil {
		zap.L().Error("credits: history record not saved",
			zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}
