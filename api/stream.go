package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/katatrina/auction-engine/internal/event"
	"github.com/katatrina/auction-engine/internal/token"
	"github.com/rs/zerolog/log"
)

const streamHeartbeatInterval = 30 * time.Second

// authorizeGroup checks that the caller may join the group. Auction groups are public;
// a user group is only open to that user.
func authorizeGroup(payload *token.Payload, group string) error {
	kind, id, err := event.ParseTopic(group)
	if err != nil {
		return err
	}

	if kind == event.TopicKindUser && (payload == nil || payload.UserID != id) {
		return ErrForbiddenGroup
	}
	return nil
}

func groupErrorStatus(err error) int {
	if errors.Is(err, ErrForbiddenGroup) {
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}

// streamEvents streams the events of the requested groups as Server-Sent Events.
// Example: GET /v1/stream?groups=auction:1,user:2
func (server *Server) streamEvents(c *gin.Context) {
	payload := authPayload(c)

	var groups []string
	for _, group := range strings.Split(c.Query("groups"), ",") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		if err := authorizeGroup(payload, group); err != nil {
			c.JSON(groupErrorStatus(err), errorResponse(err))
			return
		}
		groups = append(groups, group)
	}
	if len(groups) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse(ErrNoGroups))
		return
	}

	conn := server.hub.Connect()
	defer server.hub.Disconnect(conn.ID)

	for _, group := range groups {
		if err := server.hub.Join(conn.ID, group); err != nil {
			c.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to join %s: %w", group, err)))
			return
		}
	}

	logger := log.With().Str("connection_id", conn.ID).Strs("groups", groups).Logger()
	logger.Info().Msg("sse stream opened")

	// Thiết lập header SSE
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.SSEvent("connected", gin.H{"connection_id": conn.ID, "groups": groups})
	c.Writer.Flush()

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-conn.Events():
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			return true

		case <-c.Request.Context().Done():
			return false
		}
	})

	logger.Info().Msg("sse stream closed")
}
