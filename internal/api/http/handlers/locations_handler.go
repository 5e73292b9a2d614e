package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/taller-labs/fieldservice/internal/api/dto"
	"github.com/taller-labs/fieldservice/internal/auth"
	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/service"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// LocationsHandler lets technicians start, feed, and stop their position
// broadcast.
type LocationsHandler struct {
	locations *service.LocationService
}

// NewLocationsHandler constructs handler.
func NewLocationsHandler(locations *service.LocationService) *LocationsHandler {
	return &LocationsHandler{locations: locations}
}

// Start POST /locations/start.
func (h *LocationsHandler) Start(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.StartBroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	actor := principal.Actor()
	if err := h.locations.Start(c.UserContext(), actor.ID, req.TicketID, actor); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"broadcasting": true}})
}

// Stop POST /locations/stop.
func (h *LocationsHandler) Stop(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	h.locations.Stop(principal.Staff.ID)
	return c.JSON(fiber.Map{"data": fiber.Map{"broadcasting": false}})
}

// Sample POST /locations/sample.
func (h *LocationsHandler) Sample(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.PositionSampleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	err := h.locations.Record(c.UserContext(), domain.Position{
		TechnicianID: principal.Staff.ID,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"broadcasting": h.locations.Broadcasting(principal.Staff.ID)}})
}
