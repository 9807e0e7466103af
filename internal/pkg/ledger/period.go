package ledger

import (
	"time"

	"github.com/JonasKleint/ReelKit/internal/pkg/entitlements"
)

// adminGrantYears is the far-future sentinel horizon for operator grants.
const adminGrantYears = 100

// AdminGrantCredits is the sentinel balance written by an operator grant.
const AdminGrantCredits = 999999

// NextPeriodEnd computes the subscription end date for one paid period
// starting at base: one calendar month for monthly, one calendar year for
// yearly.
func NextPeriodEnd(base time.Time, plan entitlements.Plan) time.Time {
	if plan == entitlements.PlanYearly {
		return base.AddDate(1, 0, 0)
	}
	return base.AddDate(0, 1, 0)
}

// renewalBase picks the instant a new paid period extends from. An active
// subscription extends from its current end date so already-paid time is
// never lost; a lapsed or missing one starts from now. A stale past end
// date is never used as the base.
func renewalBase(now time.Time, endDate *time.Time) time.Time {
	if endDate != nil && endDate.After(now) {
		return *endDate
	}
	return now
}
