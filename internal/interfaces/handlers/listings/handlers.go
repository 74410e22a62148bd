package listings

import (
	"errors"
	"mime/multipart"
	"net/url"

	browsesvc "cropmarket-backend/internal/application/browse"
	listsvc "cropmarket-backend/internal/application/listings"
	"cropmarket-backend/internal/application/media"
	"cropmarket-backend/internal/middleware"
	"cropmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *listsvc.Service
	Browse  *browsesvc.Service
}

// CreateListing POST /api/v1/listings (multipart/form-data) → { ok, id }
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	raw := listsvc.RawListing{
		CropType:     c.FormValue("cropType"),
		Region:       c.FormValue("region"),
		QuantityTons: c.FormValue("quantityTons"),
		PricePerKg:   c.FormValue("pricePerKg"),
		PriceNote:    c.FormValue("priceNote"),
		HarvestStart: c.FormValue("harvestStart"),
		HarvestEnd:   c.FormValue("harvestEnd"),
		SellerName:   c.FormValue("sellerName"),
		SellerPhone:  c.FormValue("sellerPhone"),
		SellerEmail:  c.FormValue("sellerEmail"),
		Description:  c.FormValue("description"),
	}

	id, err := h.Service.Submit(c.Context(), raw, imageFiles(c))
	if err != nil {
		return h.createError(c, err)
	}
	return response.OK(c, fiber.Map{"id": id})
}

func (h *Handlers) createError(c *fiber.Ctx, err error) error {
	var ve *listsvc.ValidationError
	switch {
	case errors.As(err, &ve):
		return response.BadRequest(c, ve.Message)
	case media.IsClientError(err):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, media.ErrUploadDirMissing):
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("listings: upload directory missing")
		return response.Error(c, fiber.StatusInternalServerError, media.ErrUploadDirMissing.Error(), nil)
	case errors.Is(err, media.ErrStoreFailed):
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("listings: storing photo failed")
		return response.Error(c, fiber.StatusInternalServerError, media.ErrStoreFailed.Error(), nil)
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("listings: create failed")
		return response.ServerError(c)
	}
}

// imageFiles accepts both "images[]" (HTML file inputs) and "images".
func imageFiles(c *fiber.Ctx) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	files := append([]*multipart.FileHeader{}, form.File["images[]"]...)
	return append(files, form.File["images"]...)
}

// GetAllListings GET /api/v1/listings → bare array, newest first
func (h *Handlers) GetAllListings(c *fiber.Ctx) error {
	views, err := h.Service.ListListings(c.Context())
	if err != nil {
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("listings: list failed")
		return response.ServerError(c)
	}
	return c.JSON(views)
}

// GetListing GET /api/v1/listings/:id
func (h *Handlers) GetListing(c *fiber.Ctx) error {
	return h.getOne(c, c.Params("id"))
}

// GetListingByQuery GET /api/v1/listing?id=
func (h *Handlers) GetListingByQuery(c *fiber.Ctx) error {
	return h.getOne(c, c.Query("id"))
}

func (h *Handlers) getOne(c *fiber.Ctx, id string) error {
	view, err := h.Service.GetListing(c.Context(), id)
	var nf *listsvc.NotFoundError
	switch {
	case err == nil:
		return response.OK(c, fiber.Map{"listing": view})
	case errors.Is(err, listsvc.ErrMissingID):
		return response.BadRequest(c, err.Error())
	case errors.As(err, &nf):
		return response.Error(c, fiber.StatusNotFound, nf.Error(), fiber.Map{"requested": nf.Requested})
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("id", id).Msg("listings: get failed")
		return response.ServerError(c)
	}
}

// Search GET /api/v1/listings/search → one filtered, sorted page
func (h *Handlers) Search(c *fiber.Ctx) error {
	res, err := h.Browse.Search(c.Context(), queryValues(c))
	if err != nil {
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("listings: search failed")
		return response.ServerError(c)
	}
	return response.OK(c, fiber.Map{"results": res})
}

// Status GET /api/v1/status → { status, listings_in_db }
func (h *Handlers) Status(c *fiber.Ctx) error {
	n, err := h.Service.CountListings(c.Context())
	if err != nil {
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("listings: count failed")
		return response.ServerError(c)
	}
	return c.JSON(fiber.Map{"status": "ok", "listings_in_db": n})
}

// queryValues copies the request query string into url.Values.
func queryValues(c *fiber.Ctx) url.Values {
	q := url.Values{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		q.Add(string(key), string(value))
	})
	return q
}
