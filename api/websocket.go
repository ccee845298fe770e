package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/katatrina/auction-engine/internal/event"
	"github.com/katatrina/auction-engine/internal/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsMaxMessage = 4096
)

const (
	wsActionJoin  = "join"
	wsActionLeave = "leave"
)

// wsCommand is a frame sent by the client.
type wsCommand struct {
	Action string `json:"action"`
	Group  string `json:"group"`
}

// wsReply acknowledges a command or reports why it was refused.
type wsReply struct {
	Type   string `json:"type"` // "ack" | "error"
	Action string `json:"action,omitempty"`
	Group  string `json:"group,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (server *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(server.config.AllowedOrigins, origin)
		},
	}
}

// serveWebsocket upgrades the request and lets the client join and leave groups with
// {"action":"join","group":"auction:7"} frames. Events arrive as JSON objects.
func (server *Server) serveWebsocket(c *gin.Context) {
	payload := authPayload(c)

	ws, err := server.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	conn := server.hub.Connect()
	logger := log.With().Str("connection_id", conn.ID).Logger()
	logger.Info().Msg("websocket connected")

	replies := make(chan wsReply, 16)
	done := make(chan struct{})
	go server.wsWritePump(ws, conn, replies, done, logger)

	ws.SetReadLimit(wsMaxMessage)
	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("websocket closed unexpectedly")
			}
			break
		}

		reply := server.handleWsCommand(conn.ID, payload, message)
		select {
		case replies <- reply:
		case <-done:
		}
	}

	// Đóng kết nối sẽ đóng channel sự kiện và dừng write pump
	server.hub.Disconnect(conn.ID)
	<-done
	logger.Info().Msg("websocket disconnected")
}

func (server *Server) handleWsCommand(connID string, payload *token.Payload, message []byte) wsReply {
	var cmd wsCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		return wsReply{Type: "error", Error: "invalid frame"}
	}

	reply := wsReply{Type: "ack", Action: cmd.Action, Group: cmd.Group}
	switch cmd.Action {
	case wsActionJoin:
		if err := authorizeGroup(payload, cmd.Group); err != nil {
			reply.Type, reply.Error = "error", err.Error()
			return reply
		}
		if err := server.hub.Join(connID, cmd.Group); err != nil {
			reply.Type, reply.Error = "error", err.Error()
		}
	case wsActionLeave:
		server.hub.Leave(connID, cmd.Group)
	default:
		reply.Type, reply.Error = "error", "unknown action"
	}

	return reply
}

func (server *Server) wsWritePump(ws *websocket.Conn, conn *event.Conn, replies <-chan wsReply, done chan<- struct{}, logger zerolog.Logger) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
		close(done)
	}()

	for {
		select {
		case ev, ok := <-conn.Events():
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(ev); err != nil {
				logger.Debug().Err(err).Msg("failed to write event")
				return
			}

		case reply := <-replies:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteJSON(reply); err != nil {
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
