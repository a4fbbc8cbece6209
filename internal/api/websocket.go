package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"meanrev-bot/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// websocket streams trades, log entries, and run-flag changes to the
// dashboard as they happen.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	trades, unsubTrades := s.Bus.Subscribe(events.EventTradeExecuted, 100)
	defer unsubTrades()
	logs, unsubLogs := s.Bus.Subscribe(events.EventLogEntry, 100)
	defer unsubLogs()
	states, unsubStates := s.Bus.Subscribe(events.EventBotState, 10)
	defer unsubStates()

	ctx := c.Request.Context()
	for {
		var frame wsFrame
		select {
		case <-ctx.Done():
			return
		case msg := <-trades:
			frame = wsFrame{Type: "trade", Data: msg}
		case msg := <-logs:
			frame = wsFrame{Type: "log", Data: msg}
		case msg := <-states:
			frame = wsFrame{Type: "state", Data: msg}
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
