package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/taller-labs/fieldservice/internal/objectstore"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// allowedUploadFolders scopes uploads to the workflow artifacts.
var allowedUploadFolders = map[string]struct{}{
	"signatures": {},
	"proofs":     {},
	"receipts":   {},
}

// UploadsHandler stores signatures, payment proofs and receipts.
type UploadsHandler struct {
	store objectstore.ObjectStore
}

// NewUploadsHandler constructs handler.
func NewUploadsHandler(store objectstore.ObjectStore) *UploadsHandler {
	return &UploadsHandler{store: store}
}

// Upload POST /uploads. Multipart form with "file" and a "folder" field.
func (h *UploadsHandler) Upload(c *fiber.Ctx) error {
	folder := c.FormValue("folder")
	if _, ok := allowedUploadFolders[folder]; !ok {
		return apperrors.NewValidationError("folder must be signatures, proofs or receipts", nil)
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file required", nil)
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable file", nil)
	}
	defer file.Close()

	url, err := h.store.Upload(c.UserContext(), folder, header.Filename,
		header.Header.Get("Content-Type"), file)
	if err != nil {
		return apperrors.NewExternalServiceError("upload failed", err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"url": url}})
}
