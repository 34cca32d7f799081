package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/carelink-health/signaling/internal/presence"
	"github.com/carelink-health/signaling/internal/signaling"
)

type testFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialCall(t *testing.T, srv *httptest.Server, room, participant string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/call/" + room + "?participantId=" + participant
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) testFrame {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame testFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestCallSocketPresenceAndSignaling(t *testing.T) {
	_, router := newTestHandlers(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	alice := dialCall(t, srv, "r1", "alice")

	frame := readFrame(t, alice)
	if frame.Event != "presence" {
		t.Fatalf("first frame = %q, want presence", frame.Event)
	}
	var snap presenceBody
	if err := json.Unmarshal(frame.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Count != 1 || snap.Participants[0] != "alice" {
		t.Fatalf("alice's initial snapshot %+v", snap)
	}

	bob := dialCall(t, srv, "r1", "bob")

	// Bob sees both participants immediately; Alice gets the change pushed.
	frame = readFrame(t, bob)
	if err := json.Unmarshal(frame.Data, &snap); err != nil {
		t.Fatalf("decode bob snapshot: %v", err)
	}
	if snap.Count != 2 {
		t.Fatalf("bob's initial snapshot count = %d, want 2", snap.Count)
	}

	frame = readFrame(t, alice)
	if frame.Event != "presence" {
		t.Fatalf("alice's update frame = %q, want presence", frame.Event)
	}
	if err := json.Unmarshal(frame.Data, &snap); err != nil {
		t.Fatalf("decode alice update: %v", err)
	}
	if snap.Count != 2 {
		t.Fatalf("alice's membership update count = %d, want 2", snap.Count)
	}

	// Bob, the lexicographically later ID, answers an offer from Alice; here
	// we just relay one message each way and check addressing.
	if err := alice.WriteJSON(map[string]string{"to": "bob", "type": "offer", "sdp": "v=0 offer"}); err != nil {
		t.Fatalf("alice send: %v", err)
	}

	frame = readFrame(t, bob)
	if frame.Event != "signal" {
		t.Fatalf("bob's frame = %q, want signal", frame.Event)
	}
	var msg messageBody
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		t.Fatalf("decode signal: %v", err)
	}
	if msg.From != "alice" || msg.SDP != "v=0 offer" {
		t.Fatalf("unexpected signal %+v", msg)
	}

	if err := bob.WriteJSON(map[string]string{"to": "alice", "type": "answer", "sdp": "v=0 answer"}); err != nil {
		t.Fatalf("bob send: %v", err)
	}
	frame = readFrame(t, alice)
	if frame.Event != "signal" {
		t.Fatalf("alice's frame = %q, want signal", frame.Event)
	}
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if msg.From != "bob" || msg.Type != "answer" {
		t.Fatalf("unexpected answer %+v", msg)
	}
}

func TestCallSocketRejectsMalformedSignal(t *testing.T) {
	_, router := newTestHandlers(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	alice := dialCall(t, srv, "r1", "alice")
	readFrame(t, alice) // initial snapshot

	// Offer without SDP comes back as an error frame, not a disconnect.
	if err := alice.WriteJSON(map[string]string{"to": "bob", "type": "offer"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	frame := readFrame(t, alice)
	if frame.Event != "error" {
		t.Fatalf("frame = %q, want error", frame.Event)
	}
}

func TestQuietSocketOutlivesPresenceTTL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	// TTL shorter than the default ping period: the socket's keep-alive must
	// still outpace it, and its ticks must run the maintenance passes.
	h := New(presence.NewRegistry(), signaling.NewRelay(), nil, zap.NewNop(),
		500*time.Millisecond, 25*time.Second, 50*time.Millisecond)
	router := gin.New()
	h.Register(router, nil, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	// An abandoned room's buffer, waiting to be pruned by some connection's
	// keep-alive.
	h.Relay.Send("idle-room", mustMessage(t, "user-1", "user-2", "v=0 stale"),
		time.Now().Add(-time.Hour))

	alice := dialCall(t, srv, "r1", "alice")
	readFrame(t, alice)

	// Several ping cycles beyond the TTL without the client sending anything.
	time.Sleep(1200 * time.Millisecond)

	if removed := h.Registry.Reap("r1", 500*time.Millisecond, time.Now()); removed != 0 {
		t.Fatalf("reap evicted %d live connected participant(s)", removed)
	}
	if got := h.Registry.Snapshot("r1").Count; got != 1 {
		t.Fatalf("registry count = %d, want 1", got)
	}
	if got := h.Relay.Rooms(); got != 0 {
		t.Fatalf("idle buffer not pruned by socket keep-alive, rooms = %d", got)
	}
}

func TestCallSocketDisconnectLeavesRoom(t *testing.T) {
	h, router := newTestHandlers(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	alice := dialCall(t, srv, "r1", "alice")
	readFrame(t, alice)
	bob := dialCall(t, srv, "r1", "bob")
	readFrame(t, bob)
	readFrame(t, alice) // bob's join

	bob.Close()

	// Alice is pushed the departure.
	frame := readFrame(t, alice)
	if frame.Event != "presence" {
		t.Fatalf("frame = %q, want presence", frame.Event)
	}
	var snap presenceBody
	if err := json.Unmarshal(frame.Data, &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Count != 1 || snap.Participants[0] != "alice" {
		t.Fatalf("after disconnect, snapshot = %+v", snap)
	}
	if got := h.Registry.Snapshot("r1").Count; got != 1 {
		t.Fatalf("registry count = %d, want 1", got)
	}
}
