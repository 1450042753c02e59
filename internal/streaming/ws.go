package streaming

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jhinpan/cc-boss/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard and CLI clients this endpoint serves aren't
	// browser-origin-restricted the way a public web app would be.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SetupWebSocketRoute registers GET /ws on router: clients connect and
// either watch one task (?task_id=N) or, unscoped, every task in the fleet.
func SetupWebSocketRoute(router *gin.Engine, hub *Hub, log *logging.Logger) {
	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := hub.Register(conn)

		if raw := c.Query("task_id"); raw != "" {
			taskID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				hub.Unregister(client)
				return
			}
			hub.Subscribe(client, taskID)
			return
		}

		hub.SubscribeAll(client)
	})
}
