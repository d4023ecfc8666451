package domain

import "time"

// ─── Credit Ledger ──────────────────────────────────────────────────────────
// The per-user budget for on-demand ("ping") queries. CreditsRemaining is a
// plain small integer and is NEVER stored as a timestamp — a historical
// corruption bug conflated the two fields, which is why every read passes
// through Normalize.

// DefaultMaxCreditsPerPeriod is the monthly ping allowance.
const DefaultMaxCreditsPerPeriod = 30

// DefaultPingCooldown is the minimum spacing between two successful pings.
const DefaultPingCooldown = 10 * time.Second

// CreditLedger tracks a user's remaining on-demand query budget for the
// current period. The period is a UTC calendar month.
type CreditLedger struct {
	UserID              string    `json:"user_id"`
	CreditsRemaining    int       `json:"credits_remaining"`
	MaxCreditsPerPeriod int       `json:"max_credits_per_period"`
	LastResetAt         time.Time `json:"last_reset_at"`
	LastQueryAt         time.Time `json:"last_query_at"`
}

// NewCreditLedger returns a fresh ledger with the full allowance.
func NewCreditLedger(userID string, now time.Time) CreditLedger {
	return CreditLedger{
		UserID:              userID,
		CreditsRemaining:    DefaultMaxCreditsPerPeriod,
		MaxCreditsPerPeriod: DefaultMaxCreditsPerPeriod,
		LastResetAt:         now,
	}
}

// Normalize returns a self-healed copy of the ledger. It repairs two
// conditions at read time rather than propagating nonsense to the user:
//
//  1. Corruption: CreditsRemaining outside [0, max] — the signature of the
//     old bug where a server timestamp (a huge integer) was written into the
//     numeric credit field. The ledger resets to policy defaults.
//  2. Period rollover: the current UTC month differs from LastResetAt's, so
//     the allowance refills.
//
// The second return reports whether a repair or reset happened.
func (l CreditLedger) Normalize(now time.Time) (CreditLedger, bool) {
	max := l.MaxCreditsPerPeriod
	if max <= 0 || max > 1000 {
		max = DefaultMaxCreditsPerPeriod
	}

	if l.CreditsRemaining < 0 || l.CreditsRemaining > max {
		healed := l
		healed.CreditsRemaining = max
		healed.MaxCreditsPerPeriod = max
		healed.LastResetAt = now
		return healed, true
	}

	if !sameUTCMonth(l.LastResetAt, now) {
		reset := l
		reset.CreditsRemaining = max
		reset.MaxCreditsPerPeriod = max
		reset.LastResetAt = now
		return reset, true
	}

	if l.MaxCreditsPerPeriod != max {
		fixed := l
		fixed.MaxCreditsPerPeriod = max
		return fixed, true
	}
	return l, false
}

// Spend returns a copy with one credit consumed and the query time stamped.
// Callers must check eligibility first; Spend clamps at zero regardless.
func (l CreditLedger) Spend(now time.Time) CreditLedger {
	spent := l
	if spent.CreditsRemaining > 0 {
		spent.CreditsRemaining--
	}
	spent.LastQueryAt = now
	return spent
}

// CooldownRemaining returns how much of the cooldown is left at the given
// instant, or zero when the ledger is out of cooldown.
func (l CreditLedger) CooldownRemaining(now time.Time, cooldown time.Duration) time.Duration {
	if l.LastQueryAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(l.LastQueryAt)
	if elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}

func sameUTCMonth(a, b time.Time) bool {
	au, bu := a.UTC(), b.UTC()
	return au.Year() == bu.Year() && au.Month() == bu.Month()
}
