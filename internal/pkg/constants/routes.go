package constants

// Static route constants
const (
	PublicRoute = "/"

	APIRoute   = "/api"
	APIV1Route = "/api/v1"

	BillingWebhookRoute = "/api/v1/billing/webhook"
)
