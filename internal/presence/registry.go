// Package presence tracks which participants are currently in a call room.
//
// The registry is ephemeral and process-local: entries are created on join,
// kept alive by heartbeats and removed on leave or after a TTL with no
// heartbeat. Subscribers receive the full membership snapshot on every
// change.
package presence

import (
	"sort"
	"sync"
	"time"
)

// Snapshot is the membership of a room at a point in time.
type Snapshot struct {
	Room         string    `json:"room"`
	Participants []string  `json:"participants"`
	Count        int       `json:"count"`
	Timestamp    time.Time `json:"-"`
}

type room struct {
	// participant ID -> last seen
	members map[string]time.Time
	subs    map[int]func(Snapshot)
}

func (r *room) empty() bool {
	return len(r.members) == 0 && len(r.subs) == 0
}

// Registry is the authoritative membership list per room. The zero value is
// not usable; construct with NewRegistry. All methods are safe for concurrent
// use.
type Registry struct {
	// notifyMu serializes mutation+fan-out so concurrent mutations deliver
	// their snapshots to subscribers in the order they were applied. The
	// unsubscribe closures take only mu, so a callback may unsubscribe
	// itself without deadlocking.
	notifyMu sync.Mutex

	mu     sync.Mutex
	rooms  map[string]*room
	nextID int
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

func (reg *Registry) getOrCreate(roomID string) *room {
	r, ok := reg.rooms[roomID]
	if !ok {
		r = &room{
			members: make(map[string]time.Time),
			subs:    make(map[int]func(Snapshot)),
		}
		reg.rooms[roomID] = r
	}
	return r
}

// Join inserts or refreshes the participant and notifies room subscribers
// with the updated snapshot. Joining twice is idempotent.
func (reg *Registry) Join(roomID, participantID string, now time.Time) Snapshot {
	reg.notifyMu.Lock()
	defer reg.notifyMu.Unlock()

	reg.mu.Lock()
	r := reg.getOrCreate(roomID)
	r.members[participantID] = now
	snap := snapshotLocked(roomID, r, now)
	subs := subscribersLocked(r)
	reg.mu.Unlock()

	notify(subs, snap)
	return snap
}

// Heartbeat refreshes the participant's last-seen without notifying
// subscribers. Periodic pings must not cause notification storms.
func (reg *Registry) Heartbeat(roomID, participantID string, now time.Time) Snapshot {
	reg.mu.Lock()
	r := reg.getOrCreate(roomID)
	r.members[participantID] = now
	snap := snapshotLocked(roomID, r, now)
	reg.mu.Unlock()
	return snap
}

// Leave removes the participant. Subscribers are notified only if the entry
// existed; leaving an unknown room or participant is a no-op.
func (reg *Registry) Leave(roomID, participantID string) Snapshot {
	now := time.Now()

	reg.notifyMu.Lock()
	defer reg.notifyMu.Unlock()

	reg.mu.Lock()
	r, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return Snapshot{Room: roomID, Participants: []string{}, Timestamp: now}
	}
	_, existed := r.members[participantID]
	delete(r.members, participantID)
	snap := snapshotLocked(roomID, r, now)
	var subs []func(Snapshot)
	if existed {
		subs = subscribersLocked(r)
	}
	if r.empty() {
		delete(reg.rooms, roomID)
	}
	reg.mu.Unlock()

	notify(subs, snap)
	return snap
}

// Reap removes every participant whose last-seen is older than ttl relative
// to now, notifying subscribers once if anything was removed. It returns the
// number of removed entries. Intended to be driven from push-connection
// keep-alive ticks rather than a dedicated timer.
func (reg *Registry) Reap(roomID string, ttl time.Duration, now time.Time) int {
	cutoff := now.Add(-ttl)

	reg.notifyMu.Lock()
	defer reg.notifyMu.Unlock()

	reg.mu.Lock()
	r, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return 0
	}
	removed := 0
	for id, lastSeen := range r.members {
		if lastSeen.Before(cutoff) {
			delete(r.members, id)
			removed++
		}
	}
	var subs []func(Snapshot)
	var snap Snapshot
	if removed > 0 {
		snap = snapshotLocked(roomID, r, now)
		subs = subscribersLocked(r)
	}
	if r.empty() {
		delete(reg.rooms, roomID)
	}
	reg.mu.Unlock()

	if removed > 0 {
		notify(subs, snap)
	}
	return removed
}

// Snapshot returns the current membership of a room. Unknown rooms yield an
// empty snapshot; the call never blocks on anything but the registry mutex.
func (reg *Registry) Snapshot(roomID string) Snapshot {
	now := time.Now()

	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[roomID]
	if !ok {
		return Snapshot{Room: roomID, Participants: []string{}, Timestamp: now}
	}
	return snapshotLocked(roomID, r, now)
}

// Subscribe registers fn to be called with the room snapshot on every
// membership change. The returned function deregisters it and may be called
// from within a notification.
func (reg *Registry) Subscribe(roomID string, fn func(Snapshot)) func() {
	reg.mu.Lock()
	r := reg.getOrCreate(roomID)
	id := reg.nextID
	reg.nextID++
	r.subs[id] = fn
	reg.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			reg.mu.Lock()
			if r, ok := reg.rooms[roomID]; ok {
				delete(r.subs, id)
				if r.empty() {
					delete(reg.rooms, roomID)
				}
			}
			reg.mu.Unlock()
		})
	}
}

// Rooms reports how many rooms currently hold state. Used by tests and the
// health endpoint.
func (reg *Registry) Rooms() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

func snapshotLocked(roomID string, r *room, now time.Time) Snapshot {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return Snapshot{Room: roomID, Participants: ids, Count: len(ids), Timestamp: now}
}

func subscribersLocked(r *room) []func(Snapshot) {
	subs := make([]func(Snapshot), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	return subs
}

// notify runs outside the state mutex so callbacks may subscribe,
// unsubscribe or read snapshots. A panicking callback must not block
// delivery to the others.
func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		func() {
			defer func() { _ = recover() }()
			fn(snap)
		}()
	}
}
