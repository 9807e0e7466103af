package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonasKleint/ReelKit/app/models"
	"github.com/JonasKleint/ReelKit/internal/pkg/entitlements"
)

// fakeRepository mirrors the atomicity contract of the GORM repository:
// debit is a serialized check-and-decrement paired with its log entry.
type fakeRepository struct {
	mu           sync.Mutex
	ledgers      map[uint]*models.UserLedger
	transactions []models.CreditTransaction
	nextID       uint

	conflictsBeforeSuccess int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{ledgers: make(map[uint]*models.UserLedger)}
}

func (f *fakeRepository) getOrCreateLocked(userID uint) *models.UserLedger {
	if l, ok := f.ledgers[userID]; ok {
		return l
	}
	f.nextID++
	l := &models.UserLedger{
		ID:                 f.nextID,
		UserID:             userID,
		Credits:            models.DefaultFreeCredits,
		SubscriptionStatus: models.SubscriptionFree,
	}
	f.ledgers[userID] = l
	return l
}

func (f *fakeRepository) GetLedger(userID uint) (*models.UserLedger, error) {
	if userID == 0 {
		return nil, ErrNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *f.getOrCreateLocked(userID)
	return &c, nil
}

func (f *fakeRepository) GetLedgerByCustomerRef(ref string) (*models.UserLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.ledgers {
		if l.PaymentCustomerRef == ref && ref != "" {
			c := *l
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepository) SetPaymentCustomerRef(userID uint, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.getOrCreateLocked(userID)
	if l.PaymentCustomerRef == "" {
		l.PaymentCustomerRef = ref
	}
	return nil
}

func (f *fakeRepository) DebitCredit(userID uint, description string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflictsBeforeSuccess > 0 {
		f.conflictsBeforeSuccess--
		return 0, ErrConflict
	}
	l, ok := f.ledgers[userID]
	if !ok {
		return 0, ErrNotFound
	}
	if l.Credits <= 0 {
		return 0, ErrInsufficientCredits
	}
	l.Credits--
	f.transactions = append(f.transactions, models.CreditTransaction{
		UserID:          userID,
		Amount:          -1,
		TransactionType: models.TransactionTypeEditUsed,
		Description:     description,
		CreatedAt:       time.Now(),
	})
	return l.Credits, nil
}

func (f *fakeRepository) ApplySubscriptionState(userID uint, status string, endDate *time.Time, credits *int, logDescription string) (*models.UserLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.getOrCreateLocked(userID)
	l.SubscriptionStatus = status
	l.SubscriptionEndDate = endDate
	if credits != nil {
		l.Credits = *credits
	}
	if logDescription != "" {
		f.transactions = append(f.transactions, models.CreditTransaction{
			UserID:          userID,
			Amount:          0,
			TransactionType: models.TransactionTypeSubscriptionGranted,
			Description:     logDescription,
			CreatedAt:       time.Now(),
		})
	}
	c := *l
	return &c, nil
}

func (f *fakeRepository) AppendTransaction(userID uint, amount int, transactionType, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = append(f.transactions, models.CreditTransaction{
		UserID:          userID,
		Amount:          amount,
		TransactionType: transactionType,
		Description:     description,
		CreatedAt:       time.Now(),
	})
	return nil
}

func (f *fakeRepository) ListTransactions(userID uint, limit int) ([]models.CreditTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CreditTransaction
	for i := len(f.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if f.transactions[i].UserID == userID {
			out = append(out, f.transactions[i])
		}
	}
	return out, nil
}

func (f *fakeRepository) transactionSum(userID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := 0
	for _, tx := range f.transactions {
		if tx.UserID == userID {
			sum += tx.Amount
		}
	}
	return sum
}

func TestTryDebitConsumesFreeCredits(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	// New user starts with 3 credits; three debits succeed with 2, 1, 0
	// remaining, the fourth is a terminal rejection.
	for i, want := range []int{2, 1, 0} {
		res, err := svc.TryDebit(ctx, 1, "proj-a")
		require.NoError(t, err, "debit %d", i+1)
		assert.True(t, res.Charged)
		assert.Equal(t, want, res.RemainingCredits)
	}

	_, err := svc.TryDebit(ctx, 1, "proj-a")
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	snap, err := svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Credits)
	assert.False(t, snap.HasActiveSubscription)
}

func TestTryDebitZeroBalanceNeverMutates(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	repo.ledgers[7] = &models.UserLedger{UserID: 7, Credits: 0, SubscriptionStatus: models.SubscriptionFree}

	for i := 0; i < 5; i++ {
		_, err := svc.TryDebit(ctx, 7, "proj")
		assert.ErrorIs(t, err, ErrInsufficientCredits)
	}
	assert.Equal(t, 0, repo.ledgers[7].Credits)
	assert.Empty(t, repo.transactions)
}

func TestTryDebitEntitledSkipsDecrement(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	end := time.Now().Add(20 * 24 * time.Hour)
	repo.ledgers[2] = &models.UserLedger{UserID: 2, Credits: 1, SubscriptionStatus: models.SubscriptionMonthly, SubscriptionEndDate: &end}

	for i := 0; i < 4; i++ {
		res, err := svc.TryDebit(ctx, 2, "proj")
		require.NoError(t, err)
		assert.False(t, res.Charged)
		assert.Equal(t, 1, res.RemainingCredits)
	}
	assert.Empty(t, repo.transactions, "entitled debits must not log edit_used entries")
}

func TestTryDebitLapsedSubscriptionFallsBackToCredits(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	yesterday := time.Now().Add(-24 * time.Hour)
	repo.ledgers[3] = &models.UserLedger{UserID: 3, Credits: 2, SubscriptionStatus: models.SubscriptionMonthly, SubscriptionEndDate: &yesterday}

	snap, err := svc.Snapshot(ctx, 3)
	require.NoError(t, err)
	assert.False(t, snap.HasActiveSubscription, "lapsed subscription must evaluate as free")

	res, err := svc.TryDebit(ctx, 3, "proj")
	require.NoError(t, err)
	assert.True(t, res.Charged)
	assert.Equal(t, 1, res.RemainingCredits)
}

func TestTryDebitConcurrentNoDoubleSpend(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	repo.ledgers[9] = &models.UserLedger{UserID: 9, Credits: 3, SubscriptionStatus: models.SubscriptionFree}

	const attempts = 10
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.TryDebit(ctx, 9, "proj")
		}(i)
	}
	wg.Wait()

	successes, rejections := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientCredits):
			rejections++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, successes)
	assert.Equal(t, 7, rejections)
	assert.Equal(t, 0, repo.ledgers[9].Credits)
}

func TestTryDebitRetriesOnceOnConflict(t *testing.T) {
	repo := newFakeRepository()
	repo.conflictsBeforeSuccess = 1
	svc := NewService(repo)

	repo.ledgers[4] = &models.UserLedger{UserID: 4, Credits: 1, SubscriptionStatus: models.SubscriptionFree}

	res, err := svc.TryDebit(context.Background(), 4, "proj")
	require.NoError(t, err)
	assert.Equal(t, 0, res.RemainingCredits)

	repo.conflictsBeforeSuccess = 2
	repo.ledgers[4].Credits = 1
	_, err = svc.TryDebit(context.Background(), 4, "proj")
	assert.ErrorIs(t, err, ErrConflict, "a second consecutive conflict is surfaced")
}

func TestDebitLogPairingSumsToBalance(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	res, err := svc.TryDebit(ctx, 5, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RemainingCredits)
	res, err = svc.TryDebit(ctx, 5, "proj-2")
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemainingCredits)

	// Initial grant plus the sum of all logged amounts equals the balance.
	assert.Equal(t, repo.ledgers[5].Credits, models.DefaultFreeCredits+repo.transactionSum(5))

	entries, err := svc.Transactions(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, -1, e.Amount)
		assert.Equal(t, models.TransactionTypeEditUsed, e.TransactionType)
	}
}

func TestActivateMonthlyFromFree(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	before := time.Now()
	snap, err := svc.Activate(ctx, 1, entitlements.PlanMonthly, "manual: ref=pay_123")
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionMonthly, snap.SubscriptionStatus)
	require.NotNil(t, snap.SubscriptionEndDate)
	assert.True(t, snap.HasActiveSubscription)

	// One calendar month out, give or take test runtime.
	want := before.AddDate(0, 1, 0)
	assert.WithinDuration(t, want, *snap.SubscriptionEndDate, 5*time.Second)

	// Credits untouched by activation.
	assert.Equal(t, models.DefaultFreeCredits, snap.Credits)

	// Subsequent debits pass through without consuming credits.
	res, err := svc.TryDebit(ctx, 1, "proj")
	require.NoError(t, err)
	assert.False(t, res.Charged)
	assert.Equal(t, models.DefaultFreeCredits, res.RemainingCredits)
}

func TestActivateExtendsActiveSubscription(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	current := time.Now().Add(10 * 24 * time.Hour)
	repo.ledgers[6] = &models.UserLedger{UserID: 6, Credits: 0, SubscriptionStatus: models.SubscriptionMonthly, SubscriptionEndDate: &current}

	snap, err := svc.Activate(ctx, 6, entitlements.PlanMonthly, "renewal")
	require.NoError(t, err)
	require.NotNil(t, snap.SubscriptionEndDate)
	assert.WithinDuration(t, current.AddDate(0, 1, 0), *snap.SubscriptionEndDate, time.Second,
		"renewing an active subscription extends from the current end date")
}

func TestActivateAfterLapseStartsFromNow(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	stale := time.Now().AddDate(0, -6, 0)
	repo.ledgers[8] = &models.UserLedger{UserID: 8, Credits: 0, SubscriptionStatus: models.SubscriptionYearly, SubscriptionEndDate: &stale}

	before := time.Now()
	snap, err := svc.Activate(ctx, 8, entitlements.PlanYearly, "re-subscribe")
	require.NoError(t, err)
	require.NotNil(t, snap.SubscriptionEndDate)
	assert.WithinDuration(t, before.AddDate(1, 0, 0), *snap.SubscriptionEndDate, 5*time.Second,
		"a stale end date is never used as the renewal base")
}

func TestActivateRejectsFreePlan(t *testing.T) {
	svc := NewService(newFakeRepository())
	_, err := svc.Activate(context.Background(), 1, entitlements.PlanFree, "x")
	assert.Error(t, err)
}

func TestActivateUntilUsesGatewayEndDate(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	end := time.Now().Add(45 * 24 * time.Hour).Truncate(time.Second)
	snap, err := svc.ActivateUntil(ctx, 1, entitlements.PlanMonthly, end, "gateway renewal evt_1")
	require.NoError(t, err)
	require.NotNil(t, snap.SubscriptionEndDate)
	assert.True(t, snap.SubscriptionEndDate.Equal(end))

	// Redelivery of the same renewal reassigns the identical end date.
	snap, err = svc.ActivateUntil(ctx, 1, entitlements.PlanMonthly, end, "gateway renewal evt_1")
	require.NoError(t, err)
	assert.True(t, snap.SubscriptionEndDate.Equal(end))
}

func TestDeactivateDowngradesImmediately(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	end := time.Now().AddDate(1, 0, 0)
	repo.ledgers[11] = &models.UserLedger{UserID: 11, Credits: 0, SubscriptionStatus: models.SubscriptionYearly, SubscriptionEndDate: &end}

	snap, err := svc.Deactivate(ctx, 11, "gateway cancel")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionFree, snap.SubscriptionStatus)
	assert.Nil(t, snap.SubscriptionEndDate)
	assert.False(t, snap.HasActiveSubscription)

	// Duplicate cancellation is a no-op on the same terminal state.
	snap, err = svc.Deactivate(ctx, 11, "gateway cancel")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionFree, snap.SubscriptionStatus)
}

func TestAdminGrantUnlimited(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	snap, err := svc.AdminGrant(context.Background(), 12, "support ticket 4711")
	require.NoError(t, err)
	assert.Equal(t, AdminGrantCredits, snap.Credits)
	assert.Equal(t, models.SubscriptionYearly, snap.SubscriptionStatus)
	require.NotNil(t, snap.SubscriptionEndDate)
	assert.True(t, snap.SubscriptionEndDate.After(time.Now().AddDate(50, 0, 0)))
	assert.True(t, snap.HasActiveSubscription)
}

func TestCustomerRefRoundTrip(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.CachePaymentCustomerRef(ctx, 13, "cus_abc"))
	// A second write must not clobber the cached ref.
	require.NoError(t, svc.CachePaymentCustomerRef(ctx, 13, "cus_other"))

	ref, err := svc.PaymentCustomerRef(ctx, 13)
	require.NoError(t, err)
	assert.Equal(t, "cus_abc", ref)

	userID, err := svc.UserIDByCustomerRef(ctx, "cus_abc")
	require.NoError(t, err)
	assert.Equal(t, uint(13), userID)

	_, err = svc.UserIDByCustomerRef(ctx, "cus_unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordRenewalPayment(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	require.NoError(t, svc.RecordRenewalPayment(context.Background(), 14, "invoice in_1"))
	require.Len(t, repo.transactions, 1)
	assert.Equal(t, 0, repo.transactions[0].Amount)
	assert.Equal(t, models.TransactionTypeSubscriptionGranted, repo.transactions[0].TransactionType)
	assert.True(t, strings.Contains(repo.transactions[0].Description, "in_1"))
}
