package catalog

import (
	"errors"

	catalogsvc "cropmarket-backend/internal/application/catalog"
	"cropmarket-backend/internal/middleware"
	"cropmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *catalogsvc.Service
}

// GetCrops GET /api/v1/crops → { ok, crops }
func (h *Handlers) GetCrops(c *fiber.Ctx) error {
	return h.list(c, catalogsvc.Crops)
}

// GetRegions GET /api/v1/regions → { ok, regions }
func (h *Handlers) GetRegions(c *fiber.Ctx) error {
	return h.list(c, catalogsvc.Regions)
}

func (h *Handlers) list(c *fiber.Ctx, kind string) error {
	entries, err := h.Service.List(kind)
	if err != nil {
		log.Error().Err(errors.Unwrap(err)).Str("trace_id", middleware.GetTraceID(c)).Str("kind", kind).Msg(err.Error())
		return response.Error(c, fiber.StatusInternalServerError, err.Error(), nil)
	}
	return response.OK(c, fiber.Map{kind: entries})
}
