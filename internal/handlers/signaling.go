package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/carelink-health/signaling/internal/signaling"
)

// SignalRequest posts one handshake message into a room.
type SignalRequest struct {
	Room      string          `json:"room"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Type      signaling.Kind  `json:"type"`
	SDP       string          `json:"sdp"`
	Candidate json.RawMessage `json:"candidate"`
}

// GetSignaling returns buffered messages for a participant, or a push stream
// of them when the client asks for one. The since parameter is the client's
// resume checkpoint in unix milliseconds.
func (h *Handlers) GetSignaling(c *gin.Context) {
	roomID := c.Query("room")
	participantID := c.Query("participantId")
	if roomID == "" || participantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room and participantId are required"})
		return
	}
	since := parseSince(c)

	if wantsStream(c) {
		h.signalStream(c, roomID, participantID, since)
		return
	}

	msgs := h.Relay.Poll(roomID, participantID, since)
	out := make([]messageBody, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageBody(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out, "timestamp": time.Now().UnixMilli()})
}

// PostSignaling buffers a message and delivers it to the recipient's open
// push connection, if any.
func (h *Handlers) PostSignaling(c *gin.Context) {
	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room is required"})
		return
	}
	msg := signaling.Message{
		From:      req.From,
		To:        req.To,
		Kind:      req.Type,
		SDP:       req.SDP,
		Candidate: req.Candidate,
	}
	if err := msg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.Relay.Send(req.Room, msg, time.Now())
	h.Log.Debug("signal relayed",
		zap.String("room", req.Room), zap.String("from", req.From),
		zap.String("to", req.To), zap.String("type", string(req.Type)))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// signalStream replays buffered messages past the checkpoint, then holds the
// response open delivering new ones as they arrive. Keep-alive ticks drive
// the relay's idle-buffer prune.
func (h *Handlers) signalStream(c *gin.Context, roomID, participantID string, since time.Time) {
	events := make(chan signaling.Message, 32)
	unsubscribe := h.Relay.Subscribe(roomID, participantID, func(m signaling.Message) {
		select {
		case events <- m:
		default:
			h.Log.Warn("signal stream backed up, dropping message",
				zap.String("room", roomID), zap.String("participant", participantID))
		}
	})
	defer unsubscribe()

	streamHeaders(c)

	// Replay the backlog first. Anything delivered through the subscription
	// while we replay would duplicate it, so the live loop skips messages at
	// or before the replay high-water mark (room timestamps are strictly
	// increasing).
	replayed := since
	for _, m := range h.Relay.Poll(roomID, participantID, since) {
		if err := writeEvent(c, "signal", toMessageBody(m)); err != nil {
			return
		}
		replayed = m.Timestamp
	}

	ticker := time.NewTicker(h.KeepaliveInterval)
	defer ticker.Stop()
	ctx := c.Request.Context()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-events:
			if !m.Timestamp.After(replayed) {
				continue
			}
			if err := writeEvent(c, "signal", toMessageBody(m)); err != nil {
				return
			}
		case now := <-ticker.C:
			if err := writeKeepalive(c, now); err != nil {
				return
			}
			if dropped := h.Relay.PruneIdle(h.SignalBufferAge, now); dropped > 0 {
				h.Log.Info("pruned idle signaling buffers", zap.Int("rooms", dropped))
			}
		}
	}
}
