package billing

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/JonasKleint/ReelKit/internal/pkg/entitlements"
	"github.com/JonasKleint/ReelKit/internal/pkg/env"
)

// StripeClient wraps the parts of the Stripe API the app consumes:
// customer creation, checkout/portal sessions, and webhook verification.
type StripeClient struct {
	WebhookSecret   string
	SuccessURL      string
	CancelURL       string
	PortalReturnURL string

	prices map[entitlements.Plan]string
}

// Setup wires the Stripe API key from the environment. Call once at boot.
func Setup() {
	stripe.Key = strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", ""))
}

// NewStripeClientFromEnv builds a client from STRIPE_* and PUBLIC_DOMAIN.
func NewStripeClientFromEnv() *StripeClient {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")

	return &StripeClient{
		WebhookSecret:   strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		SuccessURL:      base + "/billing/success",
		CancelURL:       base + "/billing/cancel",
		PortalReturnURL: base + "/settings/billing",
		prices: map[entitlements.Plan]string{
			entitlements.PlanMonthly: strings.TrimSpace(env.GetEnv("STRIPE_PRICE_MONTHLY", "")),
			entitlements.PlanYearly:  strings.TrimSpace(env.GetEnv("STRIPE_PRICE_YEARLY", "")),
		},
	}
}

// PriceID resolves a purchasable plan to its configured Stripe price.
func (c *StripeClient) PriceID(plan entitlements.Plan) (string, error) {
	id := c.prices[plan]
	if id == "" {
		return "", errors.New("no Stripe price configured for plan " + string(plan))
	}
	return id, nil
}

// CreateCustomer creates the gateway customer object for a user. The
// user id travels in metadata so webhook events remain attributable even
// if the local ref cache is lost.
func (c *StripeClient) CreateCustomer(ctx context.Context, userID uint, email string) (string, error) {
	if userID == 0 {
		return "", errors.New("user id is required")
	}
	params := &stripe.CustomerParams{
		Email: stripe.String(strings.TrimSpace(email)),
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatUint(uint64(userID), 10))

	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

// NewCheckoutSession starts a subscription checkout for the given plan and
// returns the hosted checkout URL. user_id and plan ride in the session
// metadata; the checkout.session.completed handler reads them back.
func (c *StripeClient) NewCheckoutSession(ctx context.Context, customerRef string, userID uint, plan entitlements.Plan) (string, error) {
	priceID, err := c.PriceID(plan)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(customerRef) == "" {
		return "", errors.New("customer ref is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerRef),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.SuccessURL),
		CancelURL:  stripe.String(c.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatUint(uint64(userID), 10))
	params.AddMetadata("plan", string(plan))

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// NewPortalSession creates a customer portal session for self-service
// subscription management.
func (c *StripeClient) NewPortalSession(ctx context.Context, customerRef string) (string, error) {
	if strings.TrimSpace(customerRef) == "" {
		return "", errors.New("customer ref is required")
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerRef),
		ReturnURL: stripe.String(c.PortalReturnURL),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// VerifyWebhook checks the Stripe-Signature header and parses the event.
func (c *StripeClient) VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	if c.WebhookSecret == "" {
		return stripe.Event{}, errors.New("STRIPE_WEBHOOK_SECRET is not configured")
	}
	return webhook.ConstructEventWithOptions(
		payload,
		signatureHeader,
		c.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
}
