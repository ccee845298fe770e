package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type listNotificationsRequest struct {
	IncludeRead bool `form:"include_read"`
}

func (server *Server) listNotifications(c *gin.Context) {
	userID := authPayload(c).UserID

	var req listNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	notifications, err := server.notifications.List(c, userID, req.IncludeRead)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	c.JSON(http.StatusOK, notifications)
}

func (server *Server) getUnreadCount(c *gin.Context) {
	userID := authPayload(c).UserID

	count, err := server.notifications.UnreadCount(c, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// markNotificationRead answers the same way whether or not the notification exists,
// so other users' notification ids are not revealed.
func (server *Server) markNotificationRead(c *gin.Context) {
	userID := authPayload(c).UserID

	notificationID, ok := parseIDParam(c, "notificationID")
	if !ok {
		return
	}

	if _, err := server.notifications.MarkRead(c, userID, notificationID); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to mark notification: %w", err)))
		return
	}

	server.respondUnreadCount(c, userID)
}

func (server *Server) markAllNotificationsRead(c *gin.Context) {
	userID := authPayload(c).UserID

	if _, err := server.notifications.MarkAllRead(c, userID); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to mark notifications: %w", err)))
		return
	}

	server.respondUnreadCount(c, userID)
}

func (server *Server) respondUnreadCount(c *gin.Context, userID int64) {
	count, err := server.notifications.UnreadCount(c, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}
