package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v79"

	"github.com/JonasKleint/ReelKit/internal/pkg/entitlements"
	"github.com/JonasKleint/ReelKit/internal/pkg/ledger"
)

// ErrInvalidEventPayload marks a verified event whose body does not parse
// into the expected gateway object. Callers reject these as bad requests.
var ErrInvalidEventPayload = errors.New("invalid event payload")

// Dispatcher maps verified payment gateway events onto ledger operations.
// A nil return means the event was ingested, including recognized no-ops
// and dropped events (missing metadata, unknown customer): the gateway
// must not redeliver those. Malformed payloads return an error.
type Dispatcher struct {
	ledger LedgerService
}

// NewDispatcher creates a webhook dispatcher over the given ledger service.
func NewDispatcher(svc LedgerService) *Dispatcher {
	return &Dispatcher{ledger: svc}
}

func (d *Dispatcher) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch string(event.Type) {
	case "checkout.session.completed":
		return d.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		return d.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return d.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_succeeded":
		return d.handlePaymentSucceeded(ctx, event)
	default:
		// Unknown event types are acknowledged for forward compatibility.
		fiberlog.Infof("billing: ignoring webhook event type %s (%s)", event.Type, event.ID)
		return nil
	}
}

func (d *Dispatcher) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("%w: checkout session: %v", ErrInvalidEventPayload, err)
	}

	userID := parseUserID(sess.Metadata["user_id"])
	plan := entitlements.NormalizePlan(sess.Metadata["plan"])
	if userID == 0 || !entitlements.IsPaidPlan(plan) {
		fiberlog.Warnf("billing: checkout %s missing user_id/plan metadata, dropping", event.ID)
		return nil
	}

	if sess.Customer != nil && sess.Customer.ID != "" {
		if err := d.ledger.CachePaymentCustomerRef(ctx, userID, sess.Customer.ID); err != nil {
			fiberlog.Warnf("billing: caching customer ref for user %d failed: %v", userID, err)
		}
	}

	_, err := d.ledger.Activate(ctx, userID, plan, "stripe checkout "+event.ID)
	return err
}

func (d *Dispatcher) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("%w: subscription: %v", ErrInvalidEventPayload, err)
	}

	userID, ok, err := d.resolveUser(ctx, customerID(sub.Customer), event.ID)
	if err != nil || !ok {
		return err
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusTrialing:
		plan := planFromSubscription(&sub)
		if !entitlements.IsPaidPlan(plan) {
			fiberlog.Warnf("billing: subscription %s has no recognizable interval, dropping", event.ID)
			return nil
		}
		if sub.CurrentPeriodEnd <= 0 {
			fiberlog.Warnf("billing: subscription %s carries no period end, dropping", event.ID)
			return nil
		}
		// The gateway is authoritative for renewal timing; take its
		// absolute period end instead of recomputing locally.
		end := time.Unix(sub.CurrentPeriodEnd, 0)
		_, err := d.ledger.ActivateUntil(ctx, userID, plan, end, "stripe renewal "+event.ID)
		return err
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		_, err := d.ledger.Deactivate(ctx, userID, "stripe subscription status "+string(sub.Status))
		return err
	default:
		fiberlog.Infof("billing: subscription %s in status %s, no ledger change", event.ID, sub.Status)
		return nil
	}
}

func (d *Dispatcher) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("%w: subscription: %v", ErrInvalidEventPayload, err)
	}

	userID, ok, err := d.resolveUser(ctx, customerID(sub.Customer), event.ID)
	if err != nil || !ok {
		return err
	}

	_, err = d.ledger.Deactivate(ctx, userID, "stripe cancellation "+event.ID)
	return err
}

func (d *Dispatcher) handlePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return fmt.Errorf("%w: invoice: %v", ErrInvalidEventPayload, err)
	}

	userID, ok, err := d.resolveUser(ctx, customerID(inv.Customer), event.ID)
	if err != nil || !ok {
		return err
	}

	// Informational only: the renewal event carries the state change.
	return d.ledger.RecordRenewalPayment(ctx, userID, "stripe invoice "+inv.ID)
}

// resolveUser maps a gateway customer ref to a local user. An unknown
// customer is logged and dropped (ok=false, nil error): the gateway must
// not keep retrying an event this instance can never attribute.
func (d *Dispatcher) resolveUser(ctx context.Context, customerRef, eventID string) (uint, bool, error) {
	if customerRef == "" {
		fiberlog.Warnf("billing: event %s carries no customer ref, dropping", eventID)
		return 0, false, nil
	}
	userID, err := d.ledger.UserIDByCustomerRef(ctx, customerRef)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			fiberlog.Warnf("billing: no local user for customer %s (event %s), dropping", customerRef, eventID)
			return 0, false, nil
		}
		return 0, false, err
	}
	return userID, true, nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func planFromSubscription(sub *stripe.Subscription) entitlements.Plan {
	if sub == nil || sub.Items == nil {
		return entitlements.PlanFree
	}
	for _, item := range sub.Items.Data {
		if item == nil || item.Price == nil || item.Price.Recurring == nil {
			continue
		}
		switch item.Price.Recurring.Interval {
		case stripe.PriceRecurringIntervalMonth:
			return entitlements.PlanMonthly
		case stripe.PriceRecurringIntervalYear:
			return entitlements.PlanYearly
		}
	}
	return entitlements.PlanFree
}

func parseUserID(raw string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}
