package entitlements

import (
	"strings"
	"time"

	"github.com/JonasKleint/ReelKit/app/models"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

// NormalizePlan maps arbitrary input to a known plan, defaulting to free.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanMonthly):
		return PlanMonthly
	case string(PlanYearly):
		return PlanYearly
	default:
		return PlanFree
	}
}

// IsPaidPlan reports whether the plan grants unlimited edits while active.
func IsPaidPlan(plan Plan) bool {
	return plan == PlanMonthly || plan == PlanYearly
}

// HasActiveSubscription is the single entitlement predicate: a user has
// unlimited access iff their plan is paid AND the subscription end date is
// set AND lies in the future. A paid status with a past end date is a
// lapsed subscription and counts as free. Every code path that gates
// access must go through this function.
func HasActiveSubscription(status string, endDate *time.Time, now time.Time) bool {
	if !IsPaidPlan(NormalizePlan(status)) {
		return false
	}
	if endDate == nil {
		return false
	}
	return endDate.After(now)
}

// LedgerHasActiveSubscription evaluates the predicate against a ledger row.
func LedgerHasActiveSubscription(ledger *models.UserLedger, now time.Time) bool {
	if ledger == nil {
		return false
	}
	return HasActiveSubscription(ledger.SubscriptionStatus, ledger.SubscriptionEndDate, now)
}
