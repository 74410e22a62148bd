package reports

import (
	"encoding/json"
	"errors"
	"strconv"

	reportsvc "cropmarket-backend/internal/application/reports"
	"cropmarket-backend/internal/middleware"
	"cropmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *reportsvc.Service
}

// CreateReport POST /api/v1/reports (JSON) → { ok }
func (h *Handlers) CreateReport(c *fiber.Ctx) error {
	var body map[string]interface{}
	if err := json.Unmarshal(c.Body(), &body); err != nil || body == nil {
		return response.BadRequest(c, "Invalid JSON")
	}

	_, err := h.Service.Submit(c.Context(), reportsvc.Input{
		ListingID:   asString(body["listingId"]),
		Name:        asString(body["name"]),
		Contact:     asString(body["contact"]),
		Description: asString(body["description"]),
	})
	if errors.Is(err, reportsvc.ErrMissingFields) {
		return response.Error(c, fiber.StatusUnprocessableEntity, err.Error(), nil)
	}
	if err != nil {
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("reports: submit failed")
		return response.ServerError(c)
	}
	return response.OK(c, nil)
}

// asString accepts scalar JSON values; numbers are written without exponent.
func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
	}
	return ""
}
