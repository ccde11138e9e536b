package services

import (
	"bufio"
	"time"

	"game-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ChatService is the HTTP surface over the hub: SSE for the live stream,
// plain POSTs for join, leave, and send.
type ChatService struct {
	DB  *gorm.DB
	Hub *ChatHub
}

func NewChatService(db *gorm.DB, hub *ChatHub) *ChatService {
	return &ChatService{DB: db, Hub: hub}
}

// Stream handles GET /chat/stream, a server-sent event feed covering every
// room the authenticated user has joined.
func (s *ChatService) Stream(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	ch, cancel := s.Hub.Subscribe(userID)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				w.WriteString(msg.SSEFormat())
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}

// Join handles POST /chat/join.
func (s *ChatService) Join(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	room, err := s.resolveRoom(c, userID)
	if err != nil {
		return respondError(c, err)
	}
	var joiner models.User
	if err := s.DB.First(&joiner, "id = ?", userID).Error; err != nil {
		return respondError(c, fail(ErrNotFound, "user not found"))
	}
	if err := s.Hub.Join(room, userID, joiner.Username); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"room": room, "members": s.Hub.Members(room)})
}

// Leave handles POST /chat/leave.
func (s *ChatService) Leave(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	room, err := s.resolveRoom(c, userID)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.Hub.Leave(room, userID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"room": room, "members": s.Hub.Members(room)})
}

// Send handles POST /chat/send.
func (s *ChatService) Send(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Room string `json:"room"`
		With string `json:"with"` // shortcut for a private room
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fail(ErrValidation, "invalid JSON"))
	}
	room := req.Room
	if room == "" && req.With != "" {
		room = PrivateRoom(userID, req.With)
	}
	if room == "" {
		return respondError(c, fail(ErrValidation, "room is required"))
	}

	var sender models.User
	if err := s.DB.First(&sender, "id = ?", userID).Error; err != nil {
		return respondError(c, fail(ErrNotFound, "user not found"))
	}

	msg, err := s.Hub.Send(room, userID, sender.Username, req.Body)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// History handles GET /chat/:room/history. Returns the room backlog,
// oldest first, to current members only.
func (s *ChatService) History(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	room := c.Params("room")
	msgs, err := s.Hub.History(room, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(msgs)
}

// resolveRoom reads the target room from the request body. A "with" user
// id maps to the canonical private room; a match id is validated before a
// game room is handed out.
func (s *ChatService) resolveRoom(c *fiber.Ctx, userID string) (string, error) {
	var req struct {
		Room    string `json:"room"`
		With    string `json:"with"`
		MatchID string `json:"match_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return "", fail(ErrValidation, "invalid JSON")
	}

	switch {
	case req.MatchID != "":
		var match models.GameMatch
		if err := s.DB.First(&match, "id = ?", req.MatchID).Error; err != nil {
			return "", fail(ErrNotFound, "match not found")
		}
		return GameRoom(match.ID), nil
	case req.With != "":
		var other models.User
		if err := s.DB.First(&other, "id = ?", req.With).Error; err != nil {
			return "", fail(ErrNotFound, "user not found")
		}
		return PrivateRoom(userID, other.ID), nil
	case req.Room != "":
		return req.Room, nil
	default:
		return "", fail(ErrValidation, "room, match_id, or with is required")
	}
}
