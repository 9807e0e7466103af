package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/JonasKleint/ReelKit/app/controllers"
)

// Pong is the ping endpoint response body.
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer implements the versioned API surface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// PostAuthRegister creates a new account with its starter ledger.
func (s *APIServer) PostAuthRegister(c *fiber.Ctx) error {
	return controllers.HandleAuthRegister(c)
}

// PostAuthLogin authenticates a user and opens a session.
func (s *APIServer) PostAuthLogin(c *fiber.Ctx) error {
	return controllers.HandleAuthLogin(c)
}

// PostAuthLogout destroys the current session.
func (s *APIServer) PostAuthLogout(c *fiber.Ctx) error {
	return controllers.HandleAuthLogout(c)
}

// GetAuthActivate confirms an account activation token.
func (s *APIServer) GetAuthActivate(c *fiber.Ctx) error {
	return controllers.HandleAuthActivate(c)
}

// GetAccount returns the ledger snapshot for the authenticated user.
func (s *APIServer) GetAccount(c *fiber.Ctx) error {
	return controllers.HandleGetAccount(c)
}

// GetAccountTransactions returns the credit transaction log.
func (s *APIServer) GetAccountTransactions(c *fiber.Ctx) error {
	return controllers.HandleGetTransactions(c)
}

// PostProjects creates a project and charges a credit for it.
func (s *APIServer) PostProjects(c *fiber.Ctx) error {
	return controllers.HandleCreateProject(c)
}

// GetProjects lists the authenticated user's projects.
func (s *APIServer) GetProjects(c *fiber.Ctx) error {
	return controllers.HandleListProjects(c)
}

// GetProject returns one project by UUID.
func (s *APIServer) GetProject(c *fiber.Ctx) error {
	return controllers.HandleGetProject(c)
}

// PostProjectDebit charges a credit for re-running an edit on a project.
func (s *APIServer) PostProjectDebit(c *fiber.Ctx) error {
	return controllers.HandleDebitProject(c)
}

// PostProjectPublish assigns a share code and queues the social publish.
func (s *APIServer) PostProjectPublish(c *fiber.Ctx) error {
	return controllers.HandlePublishProject(c)
}

// PostBillingCheckout starts a subscription checkout session.
func (s *APIServer) PostBillingCheckout(c *fiber.Ctx) error {
	return controllers.HandleCreateCheckoutSession(c)
}

// PostBillingPortal opens the gateway billing portal.
func (s *APIServer) PostBillingPortal(c *fiber.Ctx) error {
	return controllers.HandleCreatePortalSession(c)
}

// PostBillingWebhook ingests payment gateway events.
func (s *APIServer) PostBillingWebhook(c *fiber.Ctx) error {
	return controllers.HandleStripeWebhook(c)
}

// PostAdminGrant gives a user unlimited credits and a long subscription.
func (s *APIServer) PostAdminGrant(c *fiber.Ctx) error {
	return controllers.HandleAdminGrant(c)
}

// GetAdminJobQueue reports background job queue statistics.
func (s *APIServer) GetAdminJobQueue(c *fiber.Ctx) error {
	return controllers.HandleAdminJobQueue(c)
}

// GetAdminJob returns a single background job by id.
func (s *APIServer) GetAdminJob(c *fiber.Ctx) error {
	return controllers.HandleAdminJob(c)
}
