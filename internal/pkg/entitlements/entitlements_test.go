package entitlements

import (
	"testing"
	"time"

	"github.com/JonasKleint/ReelKit/app/models"
)

func TestNormalizePlan(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
	}{
		{in: "free", want: PlanFree},
		{in: "monthly", want: PlanMonthly},
		{in: "yearly", want: PlanYearly},
		{in: "YEARLY", want: PlanYearly},
		{in: " monthly ", want: PlanMonthly},
		{in: "invalid", want: PlanFree},
		{in: "", want: PlanFree},
	}

	for _, tt := range tests {
		if got := NormalizePlan(tt.in); got != tt.want {
			t.Fatalf("NormalizePlan(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHasActiveSubscription(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(30 * 24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name    string
		status  string
		endDate *time.Time
		want    bool
	}{
		{name: "free never entitled", status: "free", endDate: &future, want: false},
		{name: "monthly with future end", status: "monthly", endDate: &future, want: true},
		{name: "yearly with future end", status: "yearly", endDate: &future, want: true},
		{name: "monthly lapsed yesterday", status: "monthly", endDate: &past, want: false},
		{name: "yearly with nil end date", status: "yearly", endDate: nil, want: false},
		{name: "end date equal to now", status: "monthly", endDate: &now, want: false},
		{name: "unknown status", status: "platinum", endDate: &future, want: false},
	}

	for _, tt := range tests {
		if got := HasActiveSubscription(tt.status, tt.endDate, now); got != tt.want {
			t.Fatalf("%s: HasActiveSubscription = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLedgerHasActiveSubscription(t *testing.T) {
	now := time.Now()
	if LedgerHasActiveSubscription(nil, now) {
		t.Fatalf("nil ledger must not be entitled")
	}

	end := now.Add(365 * 24 * time.Hour)
	ledger := &models.UserLedger{SubscriptionStatus: models.SubscriptionYearly, SubscriptionEndDate: &end}
	if !LedgerHasActiveSubscription(ledger, now) {
		t.Fatalf("expected active yearly subscription to be entitled")
	}

	ledger.SubscriptionEndDate = nil
	if LedgerHasActiveSubscription(ledger, now) {
		t.Fatalf("paid status without end date must not be entitled")
	}
}
