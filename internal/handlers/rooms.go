package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/carelink-health/signaling/internal/rooms"
)

// CreateRoomRequest is the body for scheduling a consultation room.
type CreateRoomRequest struct {
	MaxParticipants int `json:"maxParticipants" binding:"omitempty,min=2,max=16"`
}

// RoomResponse is the public view of a directory entry.
type RoomResponse struct {
	RoomID           string `json:"roomId"`
	Code             string `json:"code"`
	MaxParticipants  int    `json:"maxParticipants"`
	ParticipantCount int    `json:"participantCount"`
}

// CreateRoom allocates a consultation room for the authenticated user.
func (h *Handlers) CreateRoom(c *gin.Context) {
	if h.Directory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "room directory is not available"})
		return
	}
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.Directory.Create(c.Request.Context(), userID.(string), req.MaxParticipants)
	if err != nil {
		h.Log.Error("room create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	h.Log.Info("room created",
		zap.String("room", room.ID), zap.String("code", room.Code),
		zap.String("creator", room.CreatorID))
	c.JSON(http.StatusCreated, gin.H{"roomId": room.ID, "code": room.Code})
}

// GetRoom returns directory metadata by room ID or shareable code, with the
// live participant count from the presence registry.
func (h *Handlers) GetRoom(c *gin.Context) {
	if h.Directory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "room directory is not available"})
		return
	}

	room, err := h.Directory.Get(c.Request.Context(), c.Param("roomId"))
	if errors.Is(err, rooms.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		h.Log.Error("room lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	c.JSON(http.StatusOK, RoomResponse{
		RoomID:           room.ID,
		Code:             room.Code,
		MaxParticipants:  room.MaxParticipants,
		ParticipantCount: h.Registry.Snapshot(room.ID).Count,
	})
}

// DeleteRoom removes a directory entry; only its creator may do so.
func (h *Handlers) DeleteRoom(c *gin.Context) {
	if h.Directory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "room directory is not available"})
		return
	}
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	err := h.Directory.Delete(c.Request.Context(), c.Param("roomId"), userID.(string))
	switch {
	case errors.Is(err, rooms.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case errors.Is(err, rooms.ErrNotCreator):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the room creator can delete the room"})
	case err != nil:
		h.Log.Error("room delete failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete room"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "room deleted"})
	}
}
