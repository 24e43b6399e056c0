package handler

import (
	"github.com/gofiber/fiber/v2"

	"sunnyapi/internal/service"
)

// ListNotifications returns the caller's notifications, newest first. ?unread=true filters unread ones.
func ListNotifications(svc service.NotificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := pageFrom(c)
		if err != nil {
			return respond(c, err)
		}
		res, err := svc.List(c.UserContext(), actor(c), c.QueryBool("unread"), page)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(res)
	}
}

func UnreadCount(svc service.NotificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := svc.UnreadCount(c.UserContext(), actor(c))
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(fiber.Map{"unread": n})
	}
}

func MarkNotificationRead(svc service.NotificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return respond(c, err)
		}
		if err := svc.MarkRead(c.UserContext(), actor(c), id); err != nil {
			return respond(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func MarkAllNotificationsRead(svc service.NotificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := svc.MarkAllRead(c.UserContext(), actor(c))
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(fiber.Map{"updated": n})
	}
}
