package model

// CreditsUnlimited is the sentinel balance for plans without metering.
const CreditsUnlimited = -1

// FreeTrialCredits is the implicit starting balance for a user identity
// that has no account record yet.
const FreeTrialCredits = 5

// CreditAccount is the metered-usage state for one user, owned by the
// store. Remaining only decreases through the metering gate's single
// commit operation.
type CreditAccount struct {
	UserID    string `json:"user_id"`
	Remaining int    `json:"credits_remaining"`
	Used      int    `json:"credits_used"`
	Plan      string `json:"plan"`
}

// Unlimited reports whether this account is exempt from decrementing.
func (a CreditAccount) Unlimited() bool {
	return a.Remaining == CreditsUnlimited || PlanUnlimited(a.Plan)
}

// CreditCheck is the outcome of a pre-flight balance check.
type CreditCheck struct {
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
	Plan      string `json:"plan"`
	Message   string `json:"message"`
}
