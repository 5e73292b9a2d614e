package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/taller-labs/fieldservice/internal/api/http/handlers"
	"github.com/taller-labs/fieldservice/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Schedule       *handlers.ScheduleHandler
	Quotes         *handlers.QuotesHandler
	Materials      *handlers.MaterialsHandler
	Payments       *handlers.PaymentsHandler
	Locations      *handlers.LocationsHandler
	Uploads        *handlers.UploadsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	tickets := protected.Group("/tickets")
	tickets.Post("", auth.RequireOperator(), cfg.Tickets.Create)
	tickets.Get("", cfg.Tickets.List)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Get("/:id/live", cfg.Tickets.Live)
	tickets.Post("/:id/transition", cfg.Tickets.Transition)
	tickets.Post("/:id/cancel", cfg.Tickets.Cancel)
	tickets.Post("/:id/reject", auth.RequireOperator(), cfg.Tickets.Reject)

	tickets.Post("/:id/slots/commit", auth.RequireOperator(), cfg.Schedule.Commit)
	tickets.Post("/:id/slots/confirm", auth.RequireOperator(), cfg.Schedule.Confirm)
	protected.Post("/schedule/rank", auth.RequireOperator(), cfg.Schedule.Rank)

	tickets.Post("/:id/quote/generate", auth.RequireOperator(), cfg.Quotes.Generate)
	tickets.Post("/:id/quote/revalidate", auth.RequireOperator(), cfg.Quotes.Revalidate)
	tickets.Post("/:id/quote/force-accept", auth.RequireOperator(), cfg.Quotes.ForceAccept)

	budgets := protected.Group("/budgets", auth.RequireOperator())
	budgets.Post("", cfg.Quotes.CreateBudget)
	budgets.Get("/:id", cfg.Quotes.GetBudget)
	budgets.Post("/:id/convert", cfg.Quotes.ConvertBudget)

	tickets.Post("/:id/material/request", cfg.Materials.Request)
	tickets.Post("/:id/material/ordered", auth.RequireOperator(), cfg.Materials.MarkOrdered)
	tickets.Post("/:id/material/received", cfg.Materials.MarkReceived)

	tickets.Post("/:id/payment/digital", cfg.Payments.StartDigital)
	tickets.Post("/:id/payment/digital/reset", auth.RequireOperator(), cfg.Payments.ResetDigital)
	tickets.Post("/:id/payment/finalize", cfg.Payments.FinalizeManual)
	tickets.Post("/:id/payment/warranty", cfg.Payments.FinalizeWarranty)

	locations := protected.Group("/locations", auth.RequireTechnician())
	locations.Post("/start", cfg.Locations.Start)
	locations.Post("/stop", cfg.Locations.Stop)
	locations.Post("/sample", cfg.Locations.Sample)

	protected.Post("/uploads", cfg.Uploads.Upload)
}
