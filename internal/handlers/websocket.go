package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/carelink-health/signaling/internal/presence"
	"github.com/carelink-health/signaling/internal/rooms"
	"github.com/carelink-health/signaling/internal/signaling"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by the OriginFilter middleware.
		return true
	},
}

// wsFrame is one event pushed to a WebSocket client, mirroring the SSE event
// names so both transports speak the same vocabulary.
type wsFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// wsInbound is a handshake message sent by the client; the sender is always
// the connection's own participant, never taken from the frame.
type wsInbound struct {
	To        string          `json:"to"`
	Type      signaling.Kind  `json:"type"`
	SDP       string          `json:"sdp"`
	Candidate json.RawMessage `json:"candidate"`
}

type wsClient struct {
	id     string
	roomID string
	conn   *websocket.Conn
	send   chan []byte
	log    *zap.Logger
}

// CallSocket joins the caller to the room over a single WebSocket: presence
// and signaling events flow out as JSON frames, handshake messages flow in.
// When the room directory is available the path segment may be a shareable
// room code.
func (h *Handlers) CallSocket(c *gin.Context) {
	identifier := c.Param("roomId")
	if identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId is required"})
		return
	}

	roomID := identifier
	if h.Directory != nil {
		resolved, err := h.Directory.Resolve(c.Request.Context(), identifier)
		if errors.Is(err, rooms.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		if err != nil {
			h.Log.Error("room resolve failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve room"})
			return
		}
		roomID = resolved
	}

	participantID := c.Query("participantId")
	if participantID == "" {
		participantID = uuid.New().String()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		id:     participantID,
		roomID: roomID,
		conn:   conn,
		send:   make(chan []byte, 64),
		log: h.Log.With(
			zap.String("room", roomID), zap.String("participant", participantID)),
	}

	// Join before subscribing so the connection does not see its own join
	// event; the snapshot pushed after subscribing covers anything that
	// happened in between.
	h.Registry.Join(roomID, participantID, time.Now())
	unsubPresence := h.Registry.Subscribe(roomID, func(s presence.Snapshot) {
		client.push(wsFrame{Event: "presence", Data: toPresenceBody(s)})
	})
	unsubSignal := h.Relay.Subscribe(roomID, participantID, func(m signaling.Message) {
		client.push(wsFrame{Event: "signal", Data: toMessageBody(m)})
	})

	snap := h.Registry.Snapshot(roomID)
	client.push(wsFrame{Event: "presence", Data: toPresenceBody(snap)})
	client.log.Info("participant connected", zap.Int("count", snap.Count))

	cleanup := func() {
		unsubPresence()
		unsubSignal()
		h.Registry.Leave(roomID, participantID)
		client.log.Info("participant disconnected")
	}

	go client.writePump(h)
	go client.readPump(h, cleanup)
}

func (cl *wsClient) push(frame wsFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		cl.log.Error("marshal frame failed", zap.Error(err))
		return
	}
	select {
	case cl.send <- data:
	default:
		cl.log.Warn("send buffer full, dropping frame")
	}
}

func (cl *wsClient) readPump(h *Handlers, cleanup func()) {
	defer func() {
		cleanup()
		cl.conn.Close()
	}()

	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		// A live socket is a heartbeat; keep the presence entry fresh.
		h.Registry.Heartbeat(cl.roomID, cl.id, time.Now())
		return nil
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				cl.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var in wsInbound
		if err := json.Unmarshal(raw, &in); err != nil {
			cl.log.Warn("discarding malformed frame", zap.Error(err))
			continue
		}

		msg := signaling.Message{
			From:      cl.id,
			To:        in.To,
			Kind:      in.Type,
			SDP:       in.SDP,
			Candidate: in.Candidate,
		}
		if err := msg.Validate(); err != nil {
			cl.push(wsFrame{Event: "error", Data: gin.H{"error": err.Error()}})
			continue
		}
		h.Relay.Send(cl.roomID, msg, time.Now())
	}
}

func (cl *wsClient) writePump(h *Handlers) {
	// Pings must outpace the presence TTL, or a quiet but connected client
	// would be reaped between ticks by a concurrent stream's maintenance
	// pass.
	period := pingPeriod
	if h.PresenceTTL > 0 && h.PresenceTTL/2 < period {
		period = h.PresenceTTL / 2
	}
	ticker := time.NewTicker(period)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case data, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case now := <-ticker.C:
			cl.conn.SetWriteDeadline(now.Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			// The ping tick is this transport's keep-alive: refresh our own
			// entry, then run the same maintenance passes the SSE streams
			// drive from theirs.
			h.Registry.Heartbeat(cl.roomID, cl.id, now)
			if removed := h.Registry.Reap(cl.roomID, h.PresenceTTL, now); removed > 0 {
				cl.log.Info("reaped stale participants", zap.Int("removed", removed))
			}
			if dropped := h.Relay.PruneIdle(h.SignalBufferAge, now); dropped > 0 {
				cl.log.Info("pruned idle signaling buffers", zap.Int("rooms", dropped))
			}
		}
	}
}
