package ledger

import (
	"testing"
	"time"

	"github.com/JonasKleint/ReelKit/internal/pkg/entitlements"
)

func TestNextPeriodEnd(t *testing.T) {
	base := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

	if got := NextPeriodEnd(base, entitlements.PlanMonthly); !got.Equal(base.AddDate(0, 1, 0)) {
		t.Fatalf("monthly period end = %v", got)
	}
	if got := NextPeriodEnd(base, entitlements.PlanYearly); !got.Equal(base.AddDate(1, 0, 0)) {
		t.Fatalf("yearly period end = %v", got)
	}
}

func TestRenewalBase(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	future := now.Add(10 * 24 * time.Hour)
	past := now.Add(-10 * 24 * time.Hour)

	if got := renewalBase(now, nil); !got.Equal(now) {
		t.Fatalf("nil end date: base = %v, want now", got)
	}
	if got := renewalBase(now, &future); !got.Equal(future) {
		t.Fatalf("active subscription: base = %v, want current end", got)
	}
	if got := renewalBase(now, &past); !got.Equal(now) {
		t.Fatalf("lapsed subscription: base = %v, want now", got)
	}
}
