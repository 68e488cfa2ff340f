package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /ws  (JWT middleware 注入 playerID)
func ServeWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.GetString("playerID")
		if playerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade failed", "player", playerID, "err", err)
			return
		}

		client := &Client{
			PlayerID: playerID,
			Conn:     conn,
			Send:     make(chan OutgoingMessage, 32),
			Hub:      hub,
		}

		select {
		case hub.register <- client:
		case <-hub.quit:
			_ = conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}
