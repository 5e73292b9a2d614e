package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/taller-labs/fieldservice/internal/api/dto"
	"github.com/taller-labs/fieldservice/internal/auth"
	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/service"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// MaterialsHandler exposes the parts-procurement sub-workflow.
type MaterialsHandler struct {
	materials *service.MaterialService
}

// NewMaterialsHandler constructs handler.
func NewMaterialsHandler(materials *service.MaterialService) *MaterialsHandler {
	return &MaterialsHandler{materials: materials}
}

// Request POST /tickets/:id/material/request.
func (h *MaterialsHandler) Request(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RequestMaterialRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	deposit, err := decimal.NewFromString(req.Deposit)
	if err != nil {
		return apperrors.NewValidationError("invalid deposit", nil)
	}
	ticket, err := h.materials.RequestMaterial(c.UserContext(), c.Params("id"), service.MaterialRequestInput{
		Description:  req.Description,
		Deposit:      deposit,
		SignatureRef: req.SignatureRef,
		Priority:     domain.PartRequestPriority(req.Priority),
	}, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// MarkOrdered POST /tickets/:id/material/ordered.
func (h *MaterialsHandler) MarkOrdered(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.MarkOrderedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	ticket, err := h.materials.MarkOrdered(c.UserContext(), c.Params("id"), req.SupplierName, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// MarkReceived POST /tickets/:id/material/received.
func (h *MaterialsHandler) MarkReceived(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.materials.MarkReceived(c.UserContext(), c.Params("id"), principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}
