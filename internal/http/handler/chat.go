package handler

import (
	"github.com/gofiber/fiber/v2"

	"sunnyapi/internal/model"
	"sunnyapi/internal/service"
)

type startChatRequest struct {
	PeerID     string  `json:"peer_id" validate:"required,uuid"`
	TargetKind *string `json:"target_kind" validate:"omitempty,oneof=service services ad ads"`
	TargetID   *string `json:"target_id" validate:"omitempty,uuid"`
}

type messageRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// StartChat opens or returns the caller's chat with a peer.
//
// @Summary Start a chat
// @Tags chats
// @Accept json
// @Produce json
// @Param body body startChatRequest true "Peer and optional listing"
// @Success 200 {object} model.Chat
// @Security BearerAuth
// @Router /api/chats [post]
func StartChat(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req startChatRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		in := service.StartChatInput{PeerID: req.PeerID, TargetID: req.TargetID}
		if req.TargetKind != nil {
			k, _ := model.ParseKind(*req.TargetKind)
			in.TargetKind = &k
		}
		chat, err := svc.Start(c.UserContext(), actor(c), in)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(chat)
	}
}

func ListChats(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		chats, err := svc.List(c.UserContext(), actor(c))
		if err != nil {
			return respond(c, err)
		}
		if chats == nil {
			chats = []model.Chat{}
		}
		return c.JSON(fiber.Map{"data": chats})
	}
}

func ListMessages(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		page, err := pageFrom(c)
		if err != nil {
			return respond(c, err)
		}
		res, err := svc.Messages(c.UserContext(), actor(c), id, page)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(res)
	}
}

func SendMessage(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		var req messageRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		msg, err := svc.SendMessage(c.UserContext(), actor(c), id, req.Text)
		if err != nil {
			return respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(msg)
	}
}
