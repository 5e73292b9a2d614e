package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/taller-labs/fieldservice/internal/api/dto"
	"github.com/taller-labs/fieldservice/internal/auth"
	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/service"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// ScheduleHandler exposes technician ranking and slot commits.
type ScheduleHandler struct {
	schedule *service.ScheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(schedule *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule}
}

// Rank POST /schedule/rank.
func (h *ScheduleHandler) Rank(c *fiber.Ctx) error {
	var req dto.RankTechniciansRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	rankings, err := h.schedule.RankTechnicians(c.UserContext(), req.Date, req.Time)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rankings})
}

// Commit POST /tickets/:id/slots/commit.
func (h *ScheduleHandler) Commit(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CommitSlotsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	slots := make([]domain.SlotProposal, 0, len(req.Slots))
	for _, slot := range req.Slots {
		slots = append(slots, domain.SlotProposal{
			Date:           slot.Date,
			Time:           slot.Time,
			TechnicianID:   slot.TechnicianID,
			TechnicianName: slot.TechnicianName,
		})
	}
	ticket, err := h.schedule.Commit(c.UserContext(), c.Params("id"), slots, req.Direct, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// Confirm POST /tickets/:id/slots/confirm.
func (h *ScheduleHandler) Confirm(c *fiber.Ctx) error {
	var req dto.ConfirmSlotRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	ticket, err := h.schedule.ConfirmSlot(c.UserContext(), c.Params("id"), req.Date, req.Time)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}
