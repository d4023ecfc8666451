package domain

import (
	"testing"
	"time"
)

var ledgerNow = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func TestNewCreditLedger(t *testing.T) {
	l := NewCreditLedger("user-1", ledgerNow)
	if l.CreditsRemaining != DefaultMaxCreditsPerPeriod {
		t.Errorf("CreditsRemaining = %d, want %d", l.CreditsRemaining, DefaultMaxCreditsPerPeriod)
	}
	if !l.LastResetAt.Equal(ledgerNow) {
		t.Errorf("LastResetAt = %v, want %v", l.LastResetAt, ledgerNow)
	}
}

func TestCreditLedger_Normalize_SelfHealsCorruption(t *testing.T) {
	tests := []struct {
		name    string
		credits int
	}{
		{"negative credits", -3},
		{"timestamp written into credit field", 1756400000}, // unix seconds
		{"absurdly large", 100000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := CreditLedger{
				UserID:              "user-1",
				CreditsRemaining:    tt.credits,
				MaxCreditsPerPeriod: DefaultMaxCreditsPerPeriod,
				LastResetAt:         ledgerNow.Add(-time.Hour),
			}
			healed, changed := l.Normalize(ledgerNow)
			if !changed {
				t.Fatal("Normalize() changed = false, want true")
			}
			if healed.CreditsRemaining != DefaultMaxCreditsPerPeriod {
				t.Errorf("CreditsRemaining = %d, want %d", healed.CreditsRemaining, DefaultMaxCreditsPerPeriod)
			}
			if !healed.LastResetAt.Equal(ledgerNow) {
				t.Errorf("LastResetAt = %v, want reset to now", healed.LastResetAt)
			}
		})
	}
}

func TestCreditLedger_Normalize_PeriodRollover(t *testing.T) {
	l := CreditLedger{
		UserID:              "user-1",
		CreditsRemaining:    2,
		MaxCreditsPerPeriod: DefaultMaxCreditsPerPeriod,
		LastResetAt:         time.Date(2026, time.February, 28, 23, 0, 0, 0, time.UTC),
	}
	reset, changed := l.Normalize(ledgerNow)
	if !changed {
		t.Fatal("Normalize() changed = false, want true across month boundary")
	}
	if reset.CreditsRemaining != DefaultMaxCreditsPerPeriod {
		t.Errorf("CreditsRemaining = %d, want refilled %d", reset.CreditsRemaining, DefaultMaxCreditsPerPeriod)
	}
}

func TestCreditLedger_Normalize_NoChangeWithinPeriod(t *testing.T) {
	l := CreditLedger{
		UserID:              "user-1",
		CreditsRemaining:    5,
		MaxCreditsPerPeriod: DefaultMaxCreditsPerPeriod,
		LastResetAt:         ledgerNow.Add(-48 * time.Hour),
	}
	same, changed := l.Normalize(ledgerNow)
	if changed {
		t.Error("Normalize() changed = true, want false within period")
	}
	if same.CreditsRemaining != 5 {
		t.Errorf("CreditsRemaining = %d, want 5", same.CreditsRemaining)
	}
}

func TestCreditLedger_Normalize_RepairsZeroMax(t *testing.T) {
	l := CreditLedger{UserID: "user-1", CreditsRemaining: 3, LastResetAt: ledgerNow}
	healed, changed := l.Normalize(ledgerNow)
	if !changed {
		t.Fatal("Normalize() changed = false, want true for zero max")
	}
	if healed.MaxCreditsPerPeriod != DefaultMaxCreditsPerPeriod {
		t.Errorf("MaxCreditsPerPeriod = %d, want %d", healed.MaxCreditsPerPeriod, DefaultMaxCreditsPerPeriod)
	}
	if healed.CreditsRemaining != 3 {
		t.Errorf("CreditsRemaining = %d, want preserved 3", healed.CreditsRemaining)
	}
}

func TestCreditLedger_Spend(t *testing.T) {
	l := NewCreditLedger("user-1", ledgerNow)
	spent := l.Spend(ledgerNow)
	if spent.CreditsRemaining != DefaultMaxCreditsPerPeriod-1 {
		t.Errorf("CreditsRemaining = %d, want %d", spent.CreditsRemaining, DefaultMaxCreditsPerPeriod-1)
	}
	if !spent.LastQueryAt.Equal(ledgerNow) {
		t.Errorf("LastQueryAt = %v, want %v", spent.LastQueryAt, ledgerNow)
	}
	// Original is untouched — ledgers are value types.
	if l.CreditsRemaining != DefaultMaxCreditsPerPeriod {
		t.Errorf("original mutated: CreditsRemaining = %d", l.CreditsRemaining)
	}
}

func TestCreditLedger_Spend_ClampsAtZero(t *testing.T) {
	l := CreditLedger{CreditsRemaining: 0, MaxCreditsPerPeriod: DefaultMaxCreditsPerPeriod}
	if spent := l.Spend(ledgerNow); spent.CreditsRemaining != 0 {
		t.Errorf("CreditsRemaining = %d, want 0", spent.CreditsRemaining)
	}
}

func TestCreditLedger_CooldownRemaining(t *testing.T) {
	l := CreditLedger{LastQueryAt: ledgerNow.Add(-4 * time.Second)}
	got := l.CooldownRemaining(ledgerNow, DefaultPingCooldown)
	if got != 6*time.Second {
		t.Errorf("CooldownRemaining() = %v, want 6s", got)
	}
}

func TestCreditLedger_CooldownRemaining_Elapsed(t *testing.T) {
	l := CreditLedger{LastQueryAt: ledgerNow.Add(-time.Minute)}
	if got := l.CooldownRemaining(ledgerNow, DefaultPingCooldown); got != 0 {
		t.Errorf("CooldownRemaining() = %v, want 0", got)
	}
}

func TestCreditLedger_CooldownRemaining_NeverQueried(t *testing.T) {
	var l CreditLedger
	if got := l.CooldownRemaining(ledgerNow, DefaultPingCooldown); got != 0 {
		t.Errorf("CooldownRemaining() = %v, want 0 for fresh ledger", got)
	}
}
