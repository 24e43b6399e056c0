package handler

import (
	"github.com/gofiber/fiber/v2"

	"sunnyapi/internal/model"
	"sunnyapi/internal/service"
)

type commentRequest struct {
	Text   string `json:"text" validate:"required,max=2000"`
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
}

// CreateComment leaves a pending review on a published listing.
//
// @Summary Comment on a listing
// @Tags comments
// @Accept json
// @Produce json
// @Param kind path string true "services or ads"
// @Param id path string true "Listing id"
// @Param body body commentRequest true "Comment"
// @Success 201 {object} model.Comment
// @Failure 400 {object} errorPayload
// @Security BearerAuth
// @Router /api/{kind}/{id}/comments [post]
func CreateComment(svc service.CommentService, kind model.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		var req commentRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		cm, err := svc.Create(c.UserContext(), actor(c), kind, id, service.CommentInput{Text: req.Text, Rating: req.Rating})
		if err != nil {
			return respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(cm)
	}
}

func ListComments(svc service.CommentService, kind model.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		page, err := pageFrom(c)
		if err != nil {
			return respond(c, err)
		}
		res, err := svc.ListForTarget(c.UserContext(), actor(c), kind, id, page)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(res)
	}
}

func ListPendingComments(svc service.CommentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := pageFrom(c)
		if err != nil {
			return respond(c, err)
		}
		res, err := svc.ListPending(c.UserContext(), actor(c), page)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(res)
	}
}

// ModerateComment approves or rejects a pending comment.
func ModerateComment(svc service.CommentService, approve bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		moderate := svc.Reject
		if approve {
			moderate = svc.Approve
		}
		cm, err := moderate(c.UserContext(), actor(c), id)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(cm)
	}
}

func DeleteComment(svc service.CommentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		if err := svc.Delete(c.UserContext(), actor(c), id); err != nil {
			return respond(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
