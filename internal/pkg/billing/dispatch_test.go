package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/JonasKleint/ReelKit/internal/pkg/entitlements"
	"github.com/JonasKleint/ReelKit/internal/pkg/ledger"
)

type fakeLedger struct {
	usersByRef map[string]uint

	activations   []string
	activateUntil []time.Time
	deactivations []uint
	renewals      []string
	cachedRefs    map[uint]string
	lastPlan      entitlements.Plan
	lastUser      uint
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{usersByRef: map[string]uint{}, cachedRefs: map[uint]string{}}
}

func (f *fakeLedger) Activate(ctx context.Context, userID uint, plan entitlements.Plan, source string) (*ledger.Snapshot, error) {
	f.activations = append(f.activations, source)
	f.lastPlan = plan
	f.lastUser = userID
	return &ledger.Snapshot{UserID: userID, SubscriptionStatus: string(plan)}, nil
}

func (f *fakeLedger) ActivateUntil(ctx context.Context, userID uint, plan entitlements.Plan, end time.Time, source string) (*ledger.Snapshot, error) {
	f.activateUntil = append(f.activateUntil, end)
	f.lastPlan = plan
	f.lastUser = userID
	return &ledger.Snapshot{UserID: userID, SubscriptionStatus: string(plan), SubscriptionEndDate: &end}, nil
}

func (f *fakeLedger) Deactivate(ctx context.Context, userID uint, source string) (*ledger.Snapshot, error) {
	f.deactivations = append(f.deactivations, userID)
	return &ledger.Snapshot{UserID: userID, SubscriptionStatus: "free"}, nil
}

func (f *fakeLedger) RecordRenewalPayment(ctx context.Context, userID uint, source string) error {
	f.renewals = append(f.renewals, source)
	f.lastUser = userID
	return nil
}

func (f *fakeLedger) UserIDByCustomerRef(ctx context.Context, ref string) (uint, error) {
	if id, ok := f.usersByRef[ref]; ok {
		return id, nil
	}
	return 0, ledger.ErrNotFound
}

func (f *fakeLedger) CachePaymentCustomerRef(ctx context.Context, userID uint, ref string) error {
	f.cachedRefs[userID] = ref
	return nil
}

func stripeEvent(t *testing.T, id, eventType, raw string) stripe.Event {
	t.Helper()
	return stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestHandleCheckoutCompleted(t *testing.T) {
	fl := newFakeLedger()
	d := NewDispatcher(fl)

	ev := stripeEvent(t, "evt_1", "checkout.session.completed", `{
		"customer": "cus_42",
		"metadata": {"user_id": "7", "plan": "monthly"}
	}`)

	require.NoError(t, d.HandleEvent(context.Background(), ev))
	require.Len(t, fl.activations, 1)
	assert.Equal(t, uint(7), fl.lastUser)
	assert.Equal(t, entitlements.PlanMonthly, fl.lastPlan)
	assert.Equal(t, "cus_42", fl.cachedRefs[7])
}

func TestHandleCheckoutCompletedMissingMetadataDrops(t *testing.T) {
	fl := newFakeLedger()
	d := NewDispatcher(fl)

	// No user_id: logged and dropped, never an error back to the gateway.
	ev := stripeEvent(t, "evt_2", "checkout.session.completed", `{"metadata": {"plan": "monthly"}}`)
	require.NoError(t, d.HandleEvent(context.Background(), ev))
	assert.Empty(t, fl.activations)

	// Free plan in metadata is equally unusable.
	ev = stripeEvent(t, "evt_3", "checkout.session.completed", `{"metadata": {"user_id": "7", "plan": "free"}}`)
	require.NoError(t, d.HandleEvent(context.Background(), ev))
	assert.Empty(t, fl.activations)
}

func TestHandleSubscriptionRenewalUsesGatewayPeriodEnd(t *testing.T) {
	fl := newFakeLedger()
	fl.usersByRef["cus_9"] = 3
	d := NewDispatcher(fl)

	periodEnd := time.Now().Add(31 * 24 * time.Hour).Unix()
	ev := stripeEvent(t, "evt_4", "customer.subscription.updated", `{
		"customer": "cus_9",
		"status": "active",
		"current_period_end": `+jsonInt(periodEnd)+`,
		"items": {"data": [{"price": {"recurring": {"interval": "year"}}}]}
	}`)

	require.NoError(t, d.HandleEvent(context.Background(), ev))
	require.Len(t, fl.activateUntil, 1)
	assert.Equal(t, entitlements.PlanYearly, fl.lastPlan)
	assert.Equal(t, uint(3), fl.lastUser)
	assert.True(t, fl.activateUntil[0].Equal(time.Unix(periodEnd, 0)))

	// Redelivery reassigns the identical end date.
	require.NoError(t, d.HandleEvent(context.Background(), ev))
	require.Len(t, fl.activateUntil, 2)
	assert.True(t, fl.activateUntil[1].Equal(fl.activateUntil[0]))
}

func TestHandleSubscriptionUpdatedUnknownCustomerDrops(t *testing.T) {
	fl := newFakeLedger()
	d := NewDispatcher(fl)

	ev := stripeEvent(t, "evt_5", "customer.subscription.updated", `{
		"customer": "cus_missing",
		"status": "active",
		"current_period_end": 1893456000,
		"items": {"data": [{"price": {"recurring": {"interval": "month"}}}]}
	}`)

	require.NoError(t, d.HandleEvent(context.Background(), ev))
	assert.Empty(t, fl.activateUntil)
	assert.Empty(t, fl.deactivations)
}

func TestHandleSubscriptionDeletedDowngrades(t *testing.T) {
	fl := newFakeLedger()
	fl.usersByRef["cus_9"] = 3
	d := NewDispatcher(fl)

	ev := stripeEvent(t, "evt_6", "customer.subscription.deleted", `{"customer": "cus_9", "status": "canceled"}`)
	require.NoError(t, d.HandleEvent(context.Background(), ev))
	require.Len(t, fl.deactivations, 1)
	assert.Equal(t, uint(3), fl.deactivations[0])
}

func TestHandlePaymentSucceededLogsOnly(t *testing.T) {
	fl := newFakeLedger()
	fl.usersByRef["cus_9"] = 3
	d := NewDispatcher(fl)

	ev := stripeEvent(t, "evt_7", "invoice.payment_succeeded", `{"id": "in_55", "customer": "cus_9"}`)
	require.NoError(t, d.HandleEvent(context.Background(), ev))
	require.Len(t, fl.renewals, 1)
	assert.Contains(t, fl.renewals[0], "in_55")
	assert.Empty(t, fl.activations)
	assert.Empty(t, fl.activateUntil)
}

func TestHandleUnknownEventTypeAcknowledged(t *testing.T) {
	fl := newFakeLedger()
	d := NewDispatcher(fl)

	ev := stripeEvent(t, "evt_8", "customer.tax_id.created", `{}`)
	require.NoError(t, d.HandleEvent(context.Background(), ev))
}

func TestHandleMalformedPayloadErrors(t *testing.T) {
	fl := newFakeLedger()
	d := NewDispatcher(fl)

	ev := stripeEvent(t, "evt_9", "checkout.session.completed", `{not json`)
	err := d.HandleEvent(context.Background(), ev)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidEventPayload)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
