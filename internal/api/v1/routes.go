package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/JonasKleint/ReelKit/internal/pkg/middleware"
)

// RegisterHandlers wires the v1 routes onto the given router group.
// The webhook endpoint is public on purpose: the gateway authenticates
// itself through the payload signature, not a session.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	auth := router.Group("/auth")
	auth.Post("/register", s.PostAuthRegister)
	auth.Post("/login", s.PostAuthLogin)
	auth.Post("/logout", s.PostAuthLogout)
	auth.Get("/activate", s.GetAuthActivate)

	router.Post("/billing/webhook", s.PostBillingWebhook)

	account := router.Group("/account", middleware.RequireAPISessionAuth)
	account.Get("/", s.GetAccount)
	account.Get("/transactions", s.GetAccountTransactions)

	projects := router.Group("/projects", middleware.RequireAPISessionAuth)
	projects.Post("/", s.PostProjects)
	projects.Get("/", s.GetProjects)
	projects.Get("/:uuid", s.GetProject)
	projects.Post("/:uuid/debit", s.PostProjectDebit)
	projects.Post("/:uuid/publish", s.PostProjectPublish)

	billing := router.Group("/billing", middleware.RequireAPISessionAuth)
	billing.Post("/checkout", s.PostBillingCheckout)
	billing.Post("/portal", s.PostBillingPortal)

	admin := router.Group("/admin", middleware.RequireAdmin)
	admin.Post("/users/:id/grant", s.PostAdminGrant)
	admin.Get("/jobs", s.GetAdminJobQueue)
	admin.Get("/jobs/:id", s.GetAdminJob)
}
