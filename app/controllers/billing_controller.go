package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/JonasKleint/ReelKit/app/models"
	"github.com/JonasKleint/ReelKit/app/repository"
	"github.com/JonasKleint/ReelKit/internal/pkg/billing"
	"github.com/JonasKleint/ReelKit/internal/pkg/database"
	"github.com/JonasKleint/ReelKit/internal/pkg/entitlements"
	"github.com/JonasKleint/ReelKit/internal/pkg/ledger"
	"github.com/JonasKleint/ReelKit/internal/pkg/usercontext"
)

type checkoutRequest struct {
	Plan string `json:"plan"`
}

// HandleCreateCheckoutSession starts a subscription checkout at the payment
// gateway for the requested plan and returns the redirect URL.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}

	plan := entitlements.NormalizePlan(req.Plan)
	if !entitlements.IsPaidPlan(plan) {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "plan must be monthly or yearly")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 20*time.Second)
	defer cancel()

	svc := ledger.NewServiceFromDB(database.GetDB())
	client := billing.NewStripeClientFromEnv()

	customerRef, err := svc.PaymentCustomerRef(ctx, userCtx.UserID)
	if err != nil {
		fiberlog.Errorf("checkout: customer ref lookup failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not start checkout")
	}
	if customerRef == "" {
		user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
		if err != nil {
			fiberlog.Errorf("checkout: user lookup failed for user %d: %v", userCtx.UserID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not start checkout")
		}
		customerRef, err = client.CreateCustomer(ctx, user.ID, user.Email)
		if err != nil {
			fiberlog.Errorf("checkout: customer creation failed for user %d: %v", userCtx.UserID, err)
			return jsonError(c, fiber.StatusBadGateway, "gateway_error", "payment gateway unavailable")
		}
		if err := svc.CachePaymentCustomerRef(ctx, userCtx.UserID, customerRef); err != nil {
			fiberlog.Errorf("checkout: failed to store customer ref for user %d: %v", userCtx.UserID, err)
		}
	}

	checkoutURL, err := client.NewCheckoutSession(ctx, customerRef, userCtx.UserID, plan)
	if err != nil {
		fiberlog.Errorf("checkout: session creation failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusBadGateway, "gateway_error", "payment gateway unavailable")
	}

	return c.JSON(fiber.Map{"checkout_url": checkoutURL})
}

// HandleCreatePortalSession returns a billing portal URL where subscribers
// manage or cancel their subscription.
func HandleCreatePortalSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	ctx, cancel := context.WithTimeout(c.UserContext(), 20*time.Second)
	defer cancel()

	svc := ledger.NewServiceFromDB(database.GetDB())
	customerRef, err := svc.PaymentCustomerRef(ctx, userCtx.UserID)
	if err != nil {
		fiberlog.Errorf("portal: customer ref lookup failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not open billing portal")
	}
	if customerRef == "" {
		return jsonError(c, fiber.StatusNotFound, "not_found", "no billing account for this user")
	}

	client := billing.NewStripeClientFromEnv()
	portalURL, err := client.NewPortalSession(ctx, customerRef)
	if err != nil {
		fiberlog.Errorf("portal: session creation failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusBadGateway, "gateway_error", "payment gateway unavailable")
	}

	return c.JSON(fiber.Map{"portal_url": portalURL})
}

// HandleStripeWebhook receives payment gateway events, deduplicates them
// and applies subscription state to the ledger. Unknown event types are
// acknowledged so the gateway stops retrying them.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	event, verifyErr := billing.NewStripeClientFromEnv().VerifyWebhook(rawBody, signature)
	if verifyErr != nil {
		// Record with a payload-hash event id so repeated junk deliveries
		// stay visible without being replayable.
		_, _, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
			Provider:       models.BillingProviderStripe,
			EventType:      "signature_verification_failed",
			PayloadJSON:    string(rawBody),
			SignatureValid: false,
		})
		if err != nil {
			fiberlog.Errorf("webhook: failed to record rejected event: %v", err)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	dispatcher := billing.NewDispatcher(ledger.NewServiceFromDB(database.GetDB()))
	dispatchErr := dispatcher.HandleEvent(ctx, event)
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, dispatchErr)
	if dispatchErr != nil {
		if errors.Is(dispatchErr, billing.ErrInvalidEventPayload) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
