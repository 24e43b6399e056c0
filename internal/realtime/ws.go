package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sunnyapi/internal/events"
	"sunnyapi/internal/http/middleware"
	"sunnyapi/internal/service"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrameSize = 8 << 10
	sendTimeout  = 5 * time.Second
)

type inbound struct {
	Text string `json:"text"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Upgrade rejects plain HTTP requests and anonymous callers before the handshake.
func Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if !middleware.ActorFrom(c).Authenticated() {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		return c.Next()
	}
}

// ChatGuard lets only participants of the :id chat through.
func ChatGuard(chats service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := uuid.Parse(c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
		}
		_, err := chats.Get(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
		switch {
		case err == nil:
			return c.Next()
		case errors.Is(err, service.ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, "chat not found")
		case errors.Is(err, service.ErrForbidden):
			return fiber.NewError(fiber.StatusForbidden, "not a participant in this chat")
		}
		return err
	}
}

// Chat relays the chat room to the socket. Inbound {"text": "..."} frames are stored and broadcast
// through the chat service, so every participant, including the sender, receives the message_new event.
func Chat(hub *Hub, chats service.ChatService, log *zap.Logger) fiber.Handler {
	log = log.Named("ws_chat")
	return websocket.New(func(conn *websocket.Conn) {
		actor, _ := conn.Locals(middleware.LocalActor).(service.Actor)
		chatID := conn.Params("id")
		client := NewClient(actor.UserID)
		room := events.ChatRoom(chatID)

		hub.Join(room, client)
		done := pump(conn, client, log)

		readLoop(conn, log, func(data []byte) {
			var in inbound
			if err := json.Unmarshal(data, &in); err != nil {
				reply(client, "malformed frame")
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if _, err := chats.SendMessage(ctx, actor, chatID, in.Text); err != nil {
				reply(client, frameMessage(err))
				var ve *service.ValidationError
				if !errors.As(err, &ve) {
					log.Warn("ws_send_failed", zap.String("chat_id", chatID), zap.String("user_id", actor.UserID), zap.Error(err))
				}
			}
		})
		hub.Leave(room, client)
		<-done
	})
}

// Notifications pushes the caller's notifications. Inbound frames are ignored.
func Notifications(hub *Hub, log *zap.Logger) fiber.Handler {
	log = log.Named("ws_notifications")
	return websocket.New(func(conn *websocket.Conn) {
		actor, _ := conn.Locals(middleware.LocalActor).(service.Actor)
		client := NewClient(actor.UserID)
		room := events.UserRoom(actor.UserID)

		hub.Join(room, client)
		done := pump(conn, client, log)

		readLoop(conn, log, func([]byte) {})
		hub.Leave(room, client)
		<-done
	})
}

// readLoop returns when the peer goes away or stops answering pings.
func readLoop(conn *websocket.Conn, log *zap.Logger, handle func([]byte)) {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("ws_read_failed", zap.Error(err))
			}
			return
		}
		if kind == websocket.TextMessage {
			handle(data)
		}
	}
}

// pump starts the write pump. The returned channel is closed once it stops touching conn,
// which must happen before the handler returns and the connection is recycled.
func pump(conn *websocket.Conn, c *Client, log *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(conn, c, log)
	}()
	return done
}

// writePump owns all writes on conn. It exits when the client's queue is closed by Hub.Leave.
func writePump(conn *websocket.Conn, c *Client, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case payload, ok := <-c.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug("ws_write_failed", zap.String("user_id", c.UserID), zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func reply(c *Client, message string) {
	payload, _ := json.Marshal(errorFrame{Type: "error", Message: message})
	c.trySend(payload)
}

func frameMessage(err error) string {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, service.ErrForbidden):
		return "permission denied"
	case errors.Is(err, service.ErrNotFound):
		return "chat not found"
	}
	return "message was not sent"
}
