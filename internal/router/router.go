package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/stde-go-api/internal/config"
	"github.com/noah-isme/stde-go-api/internal/handler"
	"github.com/noah-isme/stde-go-api/internal/middleware"
	"github.com/noah-isme/stde-go-api/internal/models"
	"github.com/noah-isme/stde-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler *handler.EvaluationHandler
	DocumentHandler   *handler.DocumentHandler
	ClassroomHandler  *handler.ClassroomHandler
	ActivityHandler   *handler.ActivityHandler
	HealthProbes      map[string]handler.HealthProbe
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.EvaluationHandler != nil {
		evaluations := api.Group("/evaluations", jwtMiddleware)
		// evaluate is the only route that reaches the AI collaborator
		evaluations.Use("/evaluate", middleware.RateLimit("evaluate", cfg.HTTPRateLimitPerMinute, time.Minute))
		deps.EvaluationHandler.Register(evaluations)
	}

	if deps.DocumentHandler != nil {
		deps.DocumentHandler.Register(api.Group("/documents", jwtMiddleware))
	}

	if deps.ClassroomHandler != nil {
		classrooms := api.Group("/classrooms", jwtMiddleware, middleware.RequireRole(models.UserRoleTeacher, models.UserRoleAdmin))
		deps.ClassroomHandler.Register(classrooms)
	}

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(api.Group("/activity", jwtMiddleware))
	}
}
