package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/taller-labs/fieldservice/internal/api/dto"
	"github.com/taller-labs/fieldservice/internal/auth"
	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/service"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// QuotesHandler exposes the quote lifecycle and budget conversion.
type QuotesHandler struct {
	quotes  *service.QuoteService
	taxRate decimal.Decimal
}

// NewQuotesHandler constructs handler. taxRate is the configured VAT rate.
func NewQuotesHandler(quotes *service.QuoteService, taxRate decimal.Decimal) *QuotesHandler {
	return &QuotesHandler{quotes: quotes, taxRate: taxRate}
}

// Generate POST /tickets/:id/quote/generate.
func (h *QuotesHandler) Generate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.quotes.GenerateQuote(c.UserContext(), c.Params("id"), principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// Revalidate POST /tickets/:id/quote/revalidate.
func (h *QuotesHandler) Revalidate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.quotes.Revalidate(c.UserContext(), c.Params("id"), principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// ForceAccept POST /tickets/:id/quote/force-accept.
func (h *QuotesHandler) ForceAccept(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.quotes.ForceAccept(c.UserContext(), c.Params("id"), principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// CreateBudget POST /budgets.
func (h *QuotesHandler) CreateBudget(c *fiber.Ctx) error {
	var req dto.CreateBudgetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	items, err := dto.LineItemsToDomain(req.Items, domain.LineItemLabor)
	if err != nil {
		return err
	}
	budget, err := h.quotes.CreateBudget(c.UserContext(), service.BudgetCreateInput{
		ClientID:    req.ClientID,
		ClientName:  req.ClientName,
		Description: req.Description,
		Items:       items,
		TaxRate:     h.taxRate,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewBudgetResponse(budget)})
}

// GetBudget GET /budgets/:id.
func (h *QuotesHandler) GetBudget(c *fiber.Ctx) error {
	budget, err := h.quotes.GetBudget(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBudgetResponse(budget)})
}

// ConvertBudget POST /budgets/:id/convert.
func (h *QuotesHandler) ConvertBudget(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.quotes.ConvertBudgetToTicket(c.UserContext(), c.Params("id"), principal.Actor())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}
