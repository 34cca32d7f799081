// Package handlers exposes the presence registry and signaling relay over
// HTTP in two modes: a server-sent-event push stream for clients that can
// hold a connection open, and plain snapshot/poll responses for those that
// cannot. A WebSocket transport offers the same events for clients that
// prefer a bidirectional channel.
package handlers

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/carelink-health/signaling/internal/presence"
	"github.com/carelink-health/signaling/internal/rooms"
	"github.com/carelink-health/signaling/internal/signaling"
)

// Handlers holds the stores and knobs shared by every endpoint. Everything is
// injected; the package keeps no global state.
type Handlers struct {
	Registry  *presence.Registry
	Relay     *signaling.Relay
	Directory *rooms.Directory // nil when Redis is not configured
	Log       *zap.Logger

	PresenceTTL       time.Duration
	KeepaliveInterval time.Duration
	SignalBufferAge   time.Duration
}

func New(reg *presence.Registry, relay *signaling.Relay, dir *rooms.Directory, log *zap.Logger, presenceTTL, keepalive, bufferAge time.Duration) *Handlers {
	return &Handlers{
		Registry:          reg,
		Relay:             relay,
		Directory:         dir,
		Log:               log,
		PresenceTTL:       presenceTTL,
		KeepaliveInterval: keepalive,
		SignalBufferAge:   bufferAge,
	}
}

// presenceBody is the wire form of a presence snapshot.
type presenceBody struct {
	Room         string   `json:"room"`
	Participants []string `json:"participants"`
	Count        int      `json:"count"`
	Timestamp    int64    `json:"timestamp"`
}

func toPresenceBody(s presence.Snapshot) presenceBody {
	return presenceBody{
		Room:         s.Room,
		Participants: s.Participants,
		Count:        s.Count,
		Timestamp:    s.Timestamp.UnixMilli(),
	}
}

// messageBody is the wire form of a signaling message.
type messageBody struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Type      signaling.Kind  `json:"type"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func toMessageBody(m signaling.Message) messageBody {
	return messageBody{
		From:      m.From,
		To:        m.To,
		Type:      m.Kind,
		SDP:       m.SDP,
		Candidate: m.Candidate,
		Timestamp: m.Timestamp.UnixMilli(),
	}
}

// wantsStream reports whether the client asked for push mode, either with the
// sse=1 flag or an Accept header listing text/event-stream (EventSource
// implementations commonly send "text/event-stream, */*").
func wantsStream(c *gin.Context) bool {
	if c.Query("sse") == "1" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

// parseSince reads the client's resume checkpoint in unix milliseconds;
// absent or malformed values mean "from the beginning".
func parseSince(c *gin.Context) time.Time {
	raw := c.Query("since")
	if raw == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
