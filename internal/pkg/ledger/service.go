package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonasKleint/ReelKit/app/models"
	"github.com/JonasKleint/ReelKit/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// Service owns every mutation of the per-user credits & subscription
// ledger. Both gating code paths (inline project creation and the
// standalone debit endpoint) go through TryDebit, and every entitlement
// decision goes through the entitlements package.
type Service struct {
	repo Repository
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Snapshot returns the current ledger state for display.
func (s *Service) Snapshot(ctx context.Context, userID uint) (*Snapshot, error) {
	_ = ctx
	ledger, err := s.repo.GetLedger(userID)
	if err != nil {
		return nil, err
	}
	return snapshotOf(ledger, time.Now()), nil
}

// Transactions returns the most recent audit trail entries for a user.
func (s *Service) Transactions(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error) {
	_ = ctx
	if userID == 0 {
		return nil, ErrNotFound
	}
	return s.repo.ListTransactions(userID, limit)
}

// TryDebit decides whether a project edit may proceed and, when the user
// is not entitled, consumes exactly one credit paired with an edit_used
// log entry. Entitled users pass through without any ledger mutation.
// Returns ErrInsufficientCredits when the free balance is exhausted.
func (s *Service) TryDebit(ctx context.Context, userID uint, projectRef string) (*DebitResult, error) {
	_ = ctx
	ledger, err := s.repo.GetLedger(userID)
	if err != nil {
		return nil, err
	}

	if entitlements.LedgerHasActiveSubscription(ledger, time.Now()) {
		return &DebitResult{RemainingCredits: ledger.Credits, Charged: false}, nil
	}
	if ledger.Credits <= 0 {
		return nil, ErrInsufficientCredits
	}

	remaining, err := s.repo.DebitCredit(userID, "AI edit for project "+projectRef)
	if errors.Is(err, ErrConflict) {
		// Lost a race against another writer; retry once with fresh state.
		remaining, err = s.repo.DebitCredit(userID, "AI edit for project "+projectRef)
	}
	if err != nil {
		return nil, err
	}
	return &DebitResult{RemainingCredits: remaining, Charged: true}, nil
}

// Activate grants or renews a paid subscription for one period. A new
// period extends from max(now, current end date): an active subscription
// keeps its already-paid time, a lapsed one restarts from now.
func (s *Service) Activate(ctx context.Context, userID uint, plan entitlements.Plan, source string) (*Snapshot, error) {
	if !entitlements.IsPaidPlan(plan) {
		return nil, fmt.Errorf("plan %q is not purchasable", plan)
	}
	ledger, err := s.repo.GetLedger(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	end := NextPeriodEnd(renewalBase(now, ledger.SubscriptionEndDate), plan)
	return s.applyGrant(userID, plan, end, source, now)
}

// ActivateUntil writes a subscription grant with a gateway-authoritative
// absolute end date, used for renewal events where the payment gateway
// reports the period end itself. Duplicate or reordered deliveries simply
// reassign the same or a later end date.
func (s *Service) ActivateUntil(ctx context.Context, userID uint, plan entitlements.Plan, end time.Time, source string) (*Snapshot, error) {
	_ = ctx
	if !entitlements.IsPaidPlan(plan) {
		return nil, fmt.Errorf("plan %q is not purchasable", plan)
	}
	return s.applyGrant(userID, plan, end, source, time.Now())
}

func (s *Service) applyGrant(userID uint, plan entitlements.Plan, end time.Time, source string, now time.Time) (*Snapshot, error) {
	ledger, err := s.repo.ApplySubscriptionState(
		userID,
		string(plan),
		&end,
		nil,
		fmt.Sprintf("subscription granted: plan=%s until=%s (%s)", plan, end.UTC().Format(time.RFC3339), source),
	)
	if err != nil {
		return nil, err
	}
	return snapshotOf(ledger, now), nil
}

// Deactivate downgrades a user to the free plan immediately, clearing the
// end date. Assigning the same terminal state twice is a no-op, which is
// what makes duplicated cancellation webhooks safe.
func (s *Service) Deactivate(ctx context.Context, userID uint, source string) (*Snapshot, error) {
	_ = ctx
	ledger, err := s.repo.ApplySubscriptionState(userID, models.SubscriptionFree, nil, nil, "")
	if err != nil {
		return nil, err
	}
	return snapshotOf(ledger, time.Now()), nil
}

// RecordRenewalPayment appends an informational subscription_granted log
// entry for a renewal invoice without touching the ledger row; the
// renewal event itself carries the authoritative state change.
func (s *Service) RecordRenewalPayment(ctx context.Context, userID uint, source string) error {
	_ = ctx
	if userID == 0 {
		return ErrNotFound
	}
	return s.repo.AppendTransaction(userID, 0, models.TransactionTypeSubscriptionGranted, "renewal payment: "+source)
}

// AdminGrant is the operator escape hatch: effectively unlimited credits
// plus a yearly subscription with a far-future end date. Call sites must
// enforce admin authorization before reaching this.
func (s *Service) AdminGrant(ctx context.Context, userID uint, source string) (*Snapshot, error) {
	_ = ctx
	now := time.Now()
	end := now.AddDate(adminGrantYears, 0, 0)
	credits := AdminGrantCredits
	ledger, err := s.repo.ApplySubscriptionState(
		userID,
		models.SubscriptionYearly,
		&end,
		&credits,
		"operator grant: unlimited access ("+source+")",
	)
	if err != nil {
		return nil, err
	}
	return snapshotOf(ledger, now), nil
}

// UserIDByCustomerRef resolves a payment gateway customer reference to the
// local user, for webhook events keyed by customer.
func (s *Service) UserIDByCustomerRef(ctx context.Context, ref string) (uint, error) {
	_ = ctx
	ledger, err := s.repo.GetLedgerByCustomerRef(ref)
	if err != nil {
		return 0, err
	}
	return ledger.UserID, nil
}

// CachePaymentCustomerRef stores a freshly created gateway customer id on
// the ledger. Filling only an empty ref keeps concurrent checkouts from
// clobbering each other.
func (s *Service) CachePaymentCustomerRef(ctx context.Context, userID uint, ref string) error {
	_ = ctx
	if userID == 0 || ref == "" {
		return ErrNotFound
	}
	return s.repo.SetPaymentCustomerRef(userID, ref)
}

// PaymentCustomerRef returns the cached gateway customer id, empty when
// the user has never checked out.
func (s *Service) PaymentCustomerRef(ctx context.Context, userID uint) (string, error) {
	_ = ctx
	ledger, err := s.repo.GetLedger(userID)
	if err != nil {
		return "", err
	}
	return ledger.PaymentCustomerRef, nil
}

func snapshotOf(ledger *models.UserLedger, now time.Time) *Snapshot {
	return &Snapshot{
		UserID:                ledger.UserID,
		Credits:               ledger.Credits,
		SubscriptionStatus:    ledger.SubscriptionStatus,
		SubscriptionEndDate:   ledger.SubscriptionEndDate,
		HasActiveSubscription: entitlements.LedgerHasActiveSubscription(ledger, now),
	}
}
