package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/JonasKleint/ReelKit/app/controllers"
	"github.com/JonasKleint/ReelKit/internal/pkg/middleware"
	"github.com/JonasKleint/ReelKit/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Short share URLs
	app.Get("/s/:sharecode", controllers.HandleShareLink)
}
