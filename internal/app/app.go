package app

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/Huzi7869/ResuMate/internal/handlers"
	u "github.com/Huzi7869/ResuMate/internal/utils"
)

// SetupApp creates and configures a new Fiber app instance
func SetupApp(cfg u.Config, svc *handlers.ResumeService) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		BodyLimit:             cfg.Limits.MaxUploadBytes,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			u.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	RegisterMiddleware(app, cfg)
	RegisterRoutes(app, svc)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers to the app
func RegisterRoutes(app *fiber.App, svc *handlers.ResumeService) {
	v1 := app.Group("/v1")

	v1.Post("/resumes", svc.HandleUpload)
	v1.Get("/resumes", svc.HandleList)
	v1.Delete("/resumes", svc.HandleWipe)
	v1.Get("/resumes/:id", svc.HandleGet)
	v1.Get("/resumes/:id/report.pdf", svc.HandleReport)
	v1.Get("/files/:id", svc.HandleFile)

	v1.Get("/monitor", monitor.New())
}
