package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/carelink-health/signaling/internal/presence"
)

// PresenceRequest mutates room membership.
type PresenceRequest struct {
	Room          string `json:"room"`
	Action        string `json:"action"`
	ParticipantID string `json:"participantId"`
}

// GetPresence returns the room snapshot, or a push stream of membership
// changes when the client asks for one.
func (h *Handlers) GetPresence(c *gin.Context) {
	roomID := c.Query("room")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room is required"})
		return
	}

	if wantsStream(c) {
		h.presenceStream(c, roomID)
		return
	}
	c.JSON(http.StatusOK, toPresenceBody(h.Registry.Snapshot(roomID)))
}

// PostPresence applies a join, leave or heartbeat and returns the resulting
// snapshot.
func (h *Handlers) PostPresence(c *gin.Context) {
	var req PresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Room == "" || req.ParticipantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room and participantId are required"})
		return
	}

	now := time.Now()
	var snap presence.Snapshot
	switch req.Action {
	case "join":
		snap = h.Registry.Join(req.Room, req.ParticipantID, now)
		h.Log.Info("participant joined",
			zap.String("room", req.Room), zap.String("participant", req.ParticipantID),
			zap.Int("count", snap.Count))
	case "leave":
		snap = h.Registry.Leave(req.Room, req.ParticipantID)
		h.Log.Info("participant left",
			zap.String("room", req.Room), zap.String("participant", req.ParticipantID))
	case "heartbeat":
		snap = h.Registry.Heartbeat(req.Room, req.ParticipantID, now)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be join, leave or heartbeat"})
		return
	}
	c.JSON(http.StatusOK, toPresenceBody(snap))
}

// presenceStream holds the response open, emitting the current snapshot
// immediately and then one event per membership change. Keep-alive ticks
// double as the registry's reap pass, so stale entries are cleaned up while
// anyone is watching the room.
func (h *Handlers) presenceStream(c *gin.Context, roomID string) {
	events := make(chan presence.Snapshot, 16)
	unsubscribe := h.Registry.Subscribe(roomID, func(s presence.Snapshot) {
		select {
		case events <- s:
		default:
			h.Log.Warn("presence stream backed up, dropping event", zap.String("room", roomID))
		}
	})
	defer unsubscribe()

	streamHeaders(c)
	if err := writeEvent(c, "presence", toPresenceBody(h.Registry.Snapshot(roomID))); err != nil {
		return
	}

	ticker := time.NewTicker(h.KeepaliveInterval)
	defer ticker.Stop()
	ctx := c.Request.Context()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-events:
			if err := writeEvent(c, "presence", toPresenceBody(snap)); err != nil {
				return
			}
		case now := <-ticker.C:
			if err := writeKeepalive(c, now); err != nil {
				return
			}
			if removed := h.Registry.Reap(roomID, h.PresenceTTL, now); removed > 0 {
				h.Log.Info("reaped stale participants",
					zap.String("room", roomID), zap.Int("removed", removed))
			}
		}
	}
}
