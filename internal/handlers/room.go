package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"matchroom-service/internal/models"
)

// RoomService serves chat history to room members.
type RoomService interface {
	History(ctx context.Context, roomID, userID, limit int) ([]models.MessageView, error)
}

// RoomHandler exposes read access to match chat rooms.
type RoomHandler struct {
	service RoomService
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(service RoomService) *RoomHandler {
	return &RoomHandler{service: service}
}

// GetMessages returns the latest messages of a room, oldest first.
func (h *RoomHandler) GetMessages(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil || roomID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}

	messages, err := h.service.History(c.Request.Context(), roomID, c.GetInt("userID"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "messages": messages})
}
