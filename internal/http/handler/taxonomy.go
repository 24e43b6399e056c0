package handler

import (
	"github.com/gofiber/fiber/v2"

	"sunnyapi/internal/model"
	"sunnyapi/internal/service"
)

type taxonomyRequest struct {
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
	Name     string  `json:"name" validate:"required,max=100"`
	Slug     string  `json:"slug" validate:"required,max=100"`
}

// TaxonomyTree returns the whole category or type tree.
//
// @Summary Category or type tree
// @Tags taxonomy
// @Produce json
// @Success 200 {array} model.Taxonomy
// @Router /api/categories [get]
// @Router /api/types [get]
func TaxonomyTree(svc service.TaxonomyService, kind model.TaxonomyKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tree, err := svc.Tree(c.UserContext(), kind)
		if err != nil {
			return respond(c, err)
		}
		if tree == nil {
			tree = []*model.Taxonomy{}
		}
		return c.JSON(tree)
	}
}

func CreateTaxonomy(svc service.TaxonomyService, kind model.TaxonomyKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req taxonomyRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		node, err := svc.Create(c.UserContext(), actor(c), service.TaxonomyInput{
			Kind:     kind,
			ParentID: req.ParentID,
			Name:     req.Name,
			Slug:     req.Slug,
		})
		if err != nil {
			return respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(node)
	}
}

func DeleteTaxonomy(svc service.TaxonomyService, kind model.TaxonomyKind) fiber.Handler {
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
