package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/taller-labs/fieldservice/internal/api/dto"
	"github.com/taller-labs/fieldservice/internal/auth"
	"github.com/taller-labs/fieldservice/internal/repository"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// AuthHandler issues tokens to staff (operators and technicians).
type AuthHandler struct {
	staff  repository.TechnicianRepository
	tokens *auth.TokenManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(staff repository.TechnicianRepository, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{staff: staff, tokens: tokens}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	staff, err := h.staff.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		return apperrors.MapError(err)
	}
	if !staff.Active {
		return apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(staff.PasswordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(staff)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"token":      token,
		"expires_at": expiresAt,
		"subject":    staff.Kind,
		"name":       staff.Name,
	}})
}
