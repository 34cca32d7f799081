// Package signaling buffers and delivers WebRTC handshake messages between
// two participants in a room. Messages are addressed point-to-point, held in
// a bounded per-room buffer so a briefly disconnected peer can catch up by
// polling, and pushed synchronously to any live subscription.
package signaling

import (
	"sync"
	"time"
)

// MaxBuffered bounds each room's message buffer; the oldest entries are
// evicted first. Handshake traffic is consumed near-instantly, so anything
// older than the most recent 200 messages is noise from an abandoned room.
const MaxBuffered = 200

type subKey struct {
	room        string
	participant string
}

type roomBuffer struct {
	messages []Message
	lastTS   time.Time
}

// Relay is the addressed message store. Construct with NewRelay; all methods
// are safe for concurrent use.
type Relay struct {
	// sendMu serializes append+delivery so concurrent sends reach a
	// subscriber in buffer order. It is never held by Subscribe or the
	// unsubscribe closures, so a callback may unsubscribe itself.
	sendMu sync.Mutex

	mu    sync.Mutex
	rooms map[string]*roomBuffer
	subs  map[subKey]func(Message)
}

func NewRelay() *Relay {
	return &Relay{
		rooms: make(map[string]*roomBuffer),
		subs:  make(map[subKey]func(Message)),
	}
}

// Send stamps the message, appends it to the room buffer and, if the
// recipient has a live subscription, invokes it synchronously. Timestamps are
// truncated to the millisecond the wire format carries and kept strictly
// increasing per room, so a client resuming from the wire timestamp of the
// last message it saw neither skips nor re-receives one. Sending to a room or
// participant with no history is not an error.
func (rl *Relay) Send(roomID string, msg Message, now time.Time) Message {
	rl.sendMu.Lock()
	defer rl.sendMu.Unlock()

	rl.mu.Lock()
	rb, ok := rl.rooms[roomID]
	if !ok {
		rb = &roomBuffer{}
		rl.rooms[roomID] = rb
	}
	ts := now.Truncate(time.Millisecond)
	if !ts.After(rb.lastTS) {
		ts = rb.lastTS.Add(time.Millisecond)
	}
	rb.lastTS = ts
	msg.Timestamp = ts

	rb.messages = append(rb.messages, msg)
	if len(rb.messages) > MaxBuffered {
		rb.messages = append(rb.messages[:0:0], rb.messages[len(rb.messages)-MaxBuffered:]...)
	}
	fn := rl.subs[subKey{roomID, msg.To}]
	rl.mu.Unlock()

	if fn != nil {
		func() {
			defer func() { _ = recover() }()
			fn(msg)
		}()
	}
	return msg
}

// Poll returns the buffered messages addressed to participantID with a
// timestamp strictly after since, in arrival order. Pure read.
func (rl *Relay) Poll(roomID, participantID string, since time.Time) []Message {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	out := []Message{}
	rb, ok := rl.rooms[roomID]
	if !ok {
		return out
	}
	for _, msg := range rb.messages {
		if msg.To == participantID && msg.Timestamp.After(since) {
			out = append(out, msg)
		}
	}
	return out
}

// Subscribe registers fn for immediate delivery of messages addressed to
// participantID in the room, replacing any previous subscription for the same
// pair. The returned function deregisters it.
func (rl *Relay) Subscribe(roomID, participantID string, fn func(Message)) func() {
	key := subKey{roomID, participantID}

	rl.mu.Lock()
	rl.subs[key] = fn
	rl.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			rl.mu.Lock()
			delete(rl.subs, key)
			rl.mu.Unlock()
		})
	}
}

// PruneIdle drops room buffers whose newest message is older than maxAge and
// that no participant is subscribed to, returning the number of rooms
// dropped. Driven from push-connection keep-alive ticks, like Registry.Reap.
func (rl *Relay) PruneIdle(maxAge time.Duration, now time.Time) int {
	cutoff := now.Add(-maxAge)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	subscribed := make(map[string]bool, len(rl.subs))
	for key := range rl.subs {
		subscribed[key.room] = true
	}
	dropped := 0
	for roomID, rb := range rl.rooms {
		if subscribed[roomID] {
			continue
		}
		if rb.lastTS.Before(cutoff) {
			delete(rl.rooms, roomID)
			dropped++
		}
	}
	return dropped
}

// Rooms reports how many room buffers are held. Used by tests and the health
// endpoint.
func (rl *Relay) Rooms() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.rooms)
}
