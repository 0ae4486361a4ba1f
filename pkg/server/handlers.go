package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-voicebot/pkg/daily"
	"github.com/teslashibe/go-voicebot/pkg/hub"
)

// ConnectResponse is the body returned by /api/connect.
type ConnectResponse struct {
	RoomURL   string `json:"room_url"`
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleConnect creates a short-lived Daily room, mints user and bot
// tokens, and starts a bot session for the room.
func (s *Server) handleConnect(c *fiber.Ctx) error {
	if s.cfg.Daily == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "daily API not configured",
		})
	}

	ctx := c.UserContext()

	room, err := s.cfg.Daily.CreateRoom(ctx, daily.DemoRoomProperties())
	if err != nil {
		s.logger.Error("failed to create room", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to connect: " + err.Error(),
		})
	}
	s.logger.Info("created room", "room", room.URL)

	userToken, err := s.cfg.Daily.CreateToken(ctx, room.URL, daily.RoomExpiry)
	if err != nil {
		s.logger.Error("failed to create user token", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to connect: " + err.Error(),
		})
	}
	botToken, err := s.cfg.Daily.CreateToken(ctx, room.URL, daily.RoomExpiry)
	if err != nil {
		s.logger.Error("failed to create bot token", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to connect: " + err.Error(),
		})
	}

	botCfg := s.cfg.Bot
	botCfg.RoomURL = room.URL
	botCfg.Token = botToken

	sess, err := s.launch(botCfg)
	if err != nil {
		s.logger.Error("failed to start session", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to connect: " + err.Error(),
		})
	}
	s.addSession(sess)
	s.runSession(sess)
	s.logger.Info("session started", "session", sess.ID, "room", room.URL)

	return c.JSON(ConnectResponse{
		RoomURL:   room.URL,
		Token:     userToken,
		SessionID: sess.ID,
	})
}

// handleEventsWS streams a session's status and transcript events to the
// browser. Subscribing doubles as presence: the first subscriber counts
// as the participant joining the room, and their disconnect as leaving.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	id := c.Params("session")
	sess := s.session(id)
	if sess == nil {
		c.WriteJSON(fiber.Map{"type": "error", "error": "unknown session"})
		c.Close()
		return
	}

	participant := c.RemoteAddr().String()
	sess.Input().ParticipantJoined(participant)
	defer sess.Input().ParticipantLeft(participant)

	client := hub.NewClient(sess.Events(), c)
	if client == nil {
		c.Close()
		return
	}
	client.Run()
}
