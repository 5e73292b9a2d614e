package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/taller-labs/fieldservice/internal/api/dto"
	"github.com/taller-labs/fieldservice/internal/auth"
	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/replica"
	"github.com/taller-labs/fieldservice/internal/repository"
	"github.com/taller-labs/fieldservice/internal/service"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// TicketsHandler manages intake, listing, transitions and cancellation.
type TicketsHandler struct {
	tickets *service.TicketService
	cache   *replica.Cache
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, cache *replica.Cache) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, cache: cache}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), service.TicketCreateInput{
		ClientID:    req.ClientID,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		Address:     req.Address,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListTickets(c.UserContext(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// Live GET /tickets/:id/live serves the push-fed replica view of a ticket
// without touching the database. Falls back to 404 before the first change
// arrives.
func (h *TicketsHandler) Live(c *fiber.Ctx) error {
	row, ok := h.cache.Snapshot(c.Params("id"))
	if !ok {
		return apperrors.NewNotFound("ticket replica", map[string]any{"ticket_id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": row})
}

// Transition POST /tickets/:id/transition.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	snapshot := service.TransitionSnapshot{Diagnosis: req.Diagnosis}
	if req.LaborItems != nil {
		items, err := dto.LineItemsToDomain(req.LaborItems, domain.LineItemLabor)
		if err != nil {
			return err
		}
		snapshot.LaborItems = items
	}
	if req.PartItems != nil {
		items, err := dto.LineItemsToDomain(req.PartItems, domain.LineItemPart)
		if err != nil {
			return err
		}
		snapshot.PartItems = items
	}
	if req.FinalPrice != nil {
		price, err := decimal.NewFromString(*req.FinalPrice)
		if err != nil {
			return apperrors.NewValidationError("invalid final_price", nil)
		}
		snapshot.FinalPrice = &price
	}

	ticket, err := h.tickets.Transition(c.UserContext(), c.Params("id"),
		domain.TicketStatus(req.NewStatus), snapshot, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// Cancel POST /tickets/:id/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CancelRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Cancel(c.UserContext(), c.Params("id"), req.Reason, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// Reject POST /tickets/:id/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.tickets.Reject(c.UserContext(), c.Params("id"), principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if techID := c.Query("technician_id"); techID != "" {
		filter.TechnicianID = &techID
	}
	if clientID := c.Query("client_id"); clientID != "" {
		filter.ClientID = &clientID
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
