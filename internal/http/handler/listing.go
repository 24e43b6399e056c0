package handler

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"sunnyapi/internal/model"
	"sunnyapi/internal/service"
)

type listingRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required"`
	Address     string   `json:"address" validate:"max=255"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	TaxonomyIDs []string `json:"taxonomy_ids" validate:"omitempty,dive,uuid"`
}

type listingPatchRequest struct {
	Title       *string       `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string       `json:"description" validate:"omitempty,min=1"`
	Address     *string       `json:"address" validate:"omitempty,max=255"`
	Price       nullableFloat `json:"price"`
	TaxonomyIDs []string      `json:"taxonomy_ids" validate:"omitempty,dive,uuid"`
}

type transitionRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// nullableFloat tells an explicit null apart from an absent field.
type nullableFloat struct {
	Set   bool
	Value *float64
}

func (n *nullableFloat) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(b, []byte("null")) {
		n.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// ListListings returns the public catalogue of one kind.
//
// @Summary List published listings
// @Tags listings
// @Produce json
// @Param kind path string true "services or ads"
// @Param category query string false "Category id (services)"
// @Param type query string false "Type id (ads)"
// @Param provider query string false "Provider id"
// @Param q query string false "Text filter"
// @Param min_price query number false "Minimum price"
// @Param max_price query number false "Maximum price"
// @Param ordering query string false "created_at, price, rating; prefix with - for descending"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} service.ListResult[model.Listing]
// @Router /api/{kind} [get]
func ListListings(svc service.ListingService, kind model.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := pageFrom(c)
		if err != nil {
			return respond(c, err)
		}
		q := service.ListingQuery{
			Query:   c.Query("q"),
			OrderBy: c.Query("ordering"),
		}
		taxonomyParam := "taxonomy"
		if c.Query(taxonomyParam) == "" {
			taxonomyParam = string(kind.Taxonomy())
		}
		if q.TaxonomyID, err = queryID(c, taxonomyParam); err != nil {
			return respond(c, err)
		}
		if q.ProviderID, err = queryID(c, "provider"); err != nil {
			return respond(c, err)
		}
		if q.MinPrice, err = queryFloat(c, "min_price"); err != nil {
			return respond(c, err)
		}
		if q.MaxPrice, err = queryFloat(c, "max_price"); err != nil {
			return respond(c, err)
		}
		res, err := svc.List(c.UserContext(), kind, q, page)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(res)
	}
}

func ListMyListings(svc service.ListingService, kind model.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := pageFrom(c)
		if err != nil {
			return respond(c, err)
		}
		res, err := svc.ListMine(c.UserContext(), actor(c), kind, page)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(res)
	}
}

// CreateListing stores a draft owned by the caller.
//
// @Summary Create a listing
// @Tags listings
// @Accept json
// @Produce json
// @Param kind path string true "services or ads"
// @Param body body listingRequest true "Listing"
// @Success 201 {object} model.Listing
// @Failure 400 {object} errorPayload
// @Security BearerAuth
// @Router /api/{kind} [post]
func CreateListing(svc service.ListingService, kind model.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req listingRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		l, err := svc.Create(c.UserContext(), actor(c), kind, service.ListingInput{
			Title:       req.Title,
			Description: req.Description,
			Address:     req.Address,
			Price:       req.Price,
			TaxonomyIDs: req.TaxonomyIDs,
		})
		if err != nil {
			return respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(l)
	}
}

func GetListing(svc service.ListingService, kind model.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		l, err := svc.Get(c.UserContext(), actor(c), kind, id)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(l)
	}
}

// UpdateListing edits content. Published or hidden listings go back to moderation.
func UpdateListing(svc service.ListingService, kind model.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		var req listingPatchRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		if req.Price.Value != nil && *req.Price.Value < 0 {
			return respond(c, invalidFields(map[string]string{"price": "must be greater than or equal to 0"}))
		}
		patch := model.ListingPatch{
			Title:       req.Title,
			Description: req.Description,
			Address:     req.Address,
			Price:       req.Price.Value,
			ClearPrice:  req.Price.Set && req.Price.Value == nil,
			TaxonomyIDs: req.TaxonomyIDs,
		}
		l, err := svc.Update(c.UserContext(), actor(c), kind, id, patch)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(l)
	}
}

func DeleteListing(svc service.ListingService, kind model.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		if err := svc.Delete(c.UserContext(), actor(c), kind, id); err != nil {
			return respond(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Transition applies a lifecycle action. Reject requires {"reason": "..."}.
//
// @Summary Change listing status
// @Tags listings
// @Accept json
// @Produce json
// @Param kind path string true "services or ads"
// @Param id path string true "Listing id"
// @Param action path string true "moderate, approve, reject, hide, publish or cancel"
// @Param body body transitionRequest false "Rejection reason"
// @Success 200 {object} model.Listing
// @Failure 406 {object} errorPayload
// @Security BearerAuth
// @Router /api/{kind}/{id}/{action} [post]
func Transition(svc service.ListingService, kind model.Kind, action model.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		var req transitionRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		l, err := svc.Transition(c.UserContext(), actor(c), kind, id, action, req.Reason)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(l)
	}
}

// UploadImage attaches a picture sent as multipart/form-data in field "file".
func UploadImage(svc service.ListingService, kind model.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct, _, _ := strings.Cut(fh.Header.Get("Content-Type"), ";")
		img, err := svc.AddImage(c.UserContext(), actor(c), kind, id, f, strings.TrimSpace(ct), fh.Size)
		if err != nil {
			return respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(img)
	}
}

func DeleteImage(svc service.ListingService, kind model.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		imageID, err := pathID(c, "image_id")
		if err != nil {
			return respond(c, err)
		}
		if err := svc.RemoveImage(c.UserContext(), actor(c), kind, id, imageID); err != nil {
			return respond(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Search runs a full-text query over published listings.
//
// @Summary Search listings
// @Tags listings
// @Produce json
// @Param q query string true "Query"
// @Param kind query string false "services, ads or both separated by commas"
// @Success 200 {object} service.ListResult[model.Listing]
// @Router /api/search [get]
func Search(svc service.ListingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := pageFrom(c)
		if err != nil {
			return respond(c, err)
		}
		kinds, err := kindsFrom(c.Query("kind"))
		if err != nil {
			return respond(c, err)
		}
		res, err := svc.Search(c.UserContext(), c.Query("q"), kinds, page)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(res)
	}
}

func ListModerationQueue(svc service.ListingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := pageFrom(c)
		if err != nil {
			return respond(c, err)
		}
		kind, ok := model.ParseKind(c.Query("kind", "services"))
		if !ok {
			return respond(c, invalidFields(map[string]string{"kind": "must be services or ads"}))
		}
		res, err := svc.ListModeration(c.UserContext(), actor(c), kind, page)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(res)
	}
}

// kindsFrom parses a comma separated kind list. Empty means all kinds.
func kindsFrom(s string) ([]model.Kind, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var kinds []model.Kind
	for _, part := range strings.Split(s, ",") {
		k, ok := model.ParseKind(strings.TrimSpace(part))
		if !ok {
			return nil, invalidFields(map[string]string{"kind": "must be services or ads"})
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
