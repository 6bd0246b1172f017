package realtime

import (
	"log"
	"time"

	"tappay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type registerFrame struct {
	UserID uint   `json:"userId"`
	Token  string `json:"token"`
}

type registerAck struct {
	Success bool   `json:"success"`
	UserID  uint   `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

const registerDeadline = 10 * time.Second

// UpgradeMiddleware gates the websocket route to real upgrade requests.
func UpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler upgrades the connection and runs the registration handshake. The
// first client frame must carry {userId, token}; on success the connection is
// attached to the hub until it drops.
func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(registerDeadline))
		var frame registerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			conn.WriteJSON(registerAck{Success: false, Error: "registration frame required"})
			return
		}

		claims, err := utils.ParseToken(frame.Token)
		if err != nil || claims.UserID != frame.UserID {
			conn.WriteJSON(registerAck{Success: false, Error: "invalid token"})
			return
		}

		conn.SetReadDeadline(time.Time{})
		hub.Register(frame.UserID, conn)
		if claims.Role == "admin" {
			hub.Join("admins", conn)
		}
		defer hub.Unregister(frame.UserID, conn)

		if err := conn.WriteJSON(registerAck{Success: true, UserID: frame.UserID}); err != nil {
			return
		}
		log.Printf("realtime: user %d connected", frame.UserID)

		// Drain client frames until the connection drops. Clients only send
		// the registration frame; everything after is keepalive traffic.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
