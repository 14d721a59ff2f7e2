package handler

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

type IdentityService interface {
	List(ctx context.Context) ([]domain.Identity, error)
	Get(ctx context.Context, name string) (*domain.Identity, error)
	Delete(ctx context.Context, name string) error
}

type IdentityHandler struct {
	service IdentityService
	logger  *slog.Logger
}

func NewIdentityHandler(service IdentityService, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{service: service, logger: logger}
}

// IdentityResponse is an identity without its embedding.
type IdentityResponse struct {
	Name         string `json:"name"`
	Contact      string `json:"contact"`
	ImageRef     string `json:"image_ref,omitempty"`
	HasEmbedding bool   `json:"has_embedding"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

type IdentityListResponse struct {
	Identities []IdentityResponse `json:"identities"`
	Total      int                `json:"total"`
}

func toIdentityResponse(ident *domain.Identity) IdentityResponse {
	resp := IdentityResponse{
		Name:         ident.Name,
		Contact:      ident.Contact,
		ImageRef:     ident.ImageRef,
		HasEmbedding: ident.HasEmbedding(),
	}
	if !ident.CreatedAt.IsZero() {
		resp.CreatedAt = ident.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	if !ident.UpdatedAt.IsZero() {
		resp.UpdatedAt = ident.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return resp
}

// List GET /v1/identities
func (h *IdentityHandler) List(c *fiber.Ctx) error {
	idents, err := h.service.List(c.Context())
	if err != nil {
		return err
	}

	resp := IdentityListResponse{Identities: make([]IdentityResponse, 0, len(idents))}
	for i := range idents {
		resp.Identities = append(resp.Identities, toIdentityResponse(&idents[i]))
	}
	resp.Total = len(resp.Identities)

	return c.JSON(resp)
}

// Get GET /v1/identities/:name
func (h *IdentityHandler) Get(c *fiber.Ctx) error {
	name, err := nameParam(c)
	if err != nil {
		return err
	}

	ident, err := h.service.Get(c.Context(), name)
	if err != nil {
		return err
	}

	return c.JSON(toIdentityResponse(ident))
}

// Delete DELETE /v1/identities/:name
func (h *IdentityHandler) Delete(c *fiber.Ctx) error {
	name, err := nameParam(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Context(), name); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// nameParam decodes the :name path segment; names may contain spaces.
func nameParam(c *fiber.Ctx) (string, error) {
	raw, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return "", domain.ErrValidationFailed.WithMessage("invalid name")
	}
	name := domain.NormalizeName(raw)
	if name == "" {
		return "", domain.ErrValidationFailed.WithMessage("name is required")
	}
	return name, nil
}
