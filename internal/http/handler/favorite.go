package handler

import (
	"github.com/gofiber/fiber/v2"

	"sunnyapi/internal/model"
	"sunnyapi/internal/service"
)

// AddFavorite bookmarks a published listing for the caller.
//
// @Summary Add to favorites
// @Tags favorites
// @Produce json
// @Param kind path string true "services or ads"
// @Param id path string true "Listing id"
// @Success 201 {object} model.Favorite
// @Failure 400 {object} errorPayload
// @Security BearerAuth
// @Router /api/{kind}/{id}/add-to-favorites [post]
func AddFavorite(svc service.FavoriteService, kind model.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		fav, err := svc.Add(c.UserContext(), actor(c), kind, id)
		if err != nil {
			return respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fav)
	}
}

func RemoveFavorite(svc service.FavoriteService, kind model.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		if err := svc.Remove(c.UserContext(), actor(c), kind, id); err != nil {
			return respond(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func ListFavorites(svc service.FavoriteService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := pageFrom(c)
		if err != nil {
			return respond(c, err)
		}
		res, err := svc.List(c.UserContext(), actor(c), page)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(res)
	}
}
