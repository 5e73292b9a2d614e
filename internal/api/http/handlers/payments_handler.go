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

// PaymentsHandler exposes the closure workflows.
type PaymentsHandler struct {
	payments *service.PaymentService
}

// NewPaymentsHandler constructs handler.
func NewPaymentsHandler(payments *service.PaymentService) *PaymentsHandler {
	return &PaymentsHandler{payments: payments}
}

// StartDigital POST /tickets/:id/payment/digital.
func (h *PaymentsHandler) StartDigital(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.StartDigitalPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	price, err := decimal.NewFromString(req.FinalPrice)
	if err != nil {
		return apperrors.NewValidationError("invalid final_price", nil)
	}
	ticket, err := h.payments.StartDigitalPayment(c.UserContext(), c.Params("id"), price, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// ResetDigital POST /tickets/:id/payment/digital/reset.
func (h *PaymentsHandler) ResetDigital(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.payments.ResetPendingPayment(c.UserContext(), c.Params("id"), principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// FinalizeManual POST /tickets/:id/payment/finalize.
func (h *PaymentsHandler) FinalizeManual(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.FinalizeManualRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	input, err := manualInput(req)
	if err != nil {
		return err
	}
	ticket, err := h.payments.FinalizeManual(c.UserContext(), c.Params("id"), input, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// FinalizeWarranty POST /tickets/:id/payment/warranty.
func (h *PaymentsHandler) FinalizeWarranty(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.FinalizeWarrantyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	input, err := manualInput(req.FinalizeManualRequest)
	if err != nil {
		return err
	}
	ticket, err := h.payments.FinalizeWarranty(c.UserContext(), c.Params("id"), service.WarrantyFinalizeInput{
		ManualFinalizeInput: input,
		LaborMonths:         req.LaborMonths,
		PartsMonths:         req.PartsMonths,
	}, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

func manualInput(req dto.FinalizeManualRequest) (service.ManualFinalizeInput, error) {
	price, err := decimal.NewFromString(req.FinalPrice)
	if err != nil {
		return service.ManualFinalizeInput{}, apperrors.NewValidationError("invalid final_price", nil)
	}
	return service.ManualFinalizeInput{
		Method:       domain.PaymentMethod(req.Method),
		FinalPrice:   price,
		ProofRef:     req.ProofRef,
		SignatureRef: req.SignatureRef,
	}, nil
}
