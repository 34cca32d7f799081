// Package rooms is a Redis-backed directory of scheduled consultation rooms.
// It maps short shareable codes to room IDs and holds room metadata with a
// TTL. The presence registry and signaling relay never depend on it; rooms
// there are implicit and the directory only adds a discoverable front door
// for scheduled calls.
package rooms

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	codeLength = 8
	// Ambiguous characters removed so codes survive being read over the phone.
	codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	defaultTTL             = 24 * time.Hour
	defaultMaxParticipants = 2
)

var (
	ErrNotFound   = errors.New("rooms: room not found")
	ErrNotCreator = errors.New("rooms: only the room creator may delete it")
)

// Room is the stored metadata for one consultation room.
type Room struct {
	ID              string    `json:"id"`
	Code            string    `json:"code"`
	CreatorID       string    `json:"creatorId"`
	CreatedAt       time.Time `json:"createdAt"`
	MaxParticipants int       `json:"maxParticipants"`
}

// Directory stores room metadata in Redis under room:<id> with a code:<code>
// alias, both expiring after TTL.
type Directory struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDirectory(client *redis.Client) *Directory {
	return &Directory{client: client, ttl: defaultTTL}
}

// Create allocates a room ID and shareable code for the given creator.
func (d *Directory) Create(ctx context.Context, creatorID string, maxParticipants int) (Room, error) {
	if maxParticipants <= 0 {
		maxParticipants = defaultMaxParticipants
	}
	room := Room{
		ID:              uuid.New().String(),
		Code:            generateCode(),
		CreatorID:       creatorID,
		CreatedAt:       time.Now(),
		MaxParticipants: maxParticipants,
	}

	data, err := json.Marshal(room)
	if err != nil {
		return Room{}, fmt.Errorf("rooms: marshal metadata: %w", err)
	}
	if err := d.client.Set(ctx, roomKey(room.ID), data, d.ttl).Err(); err != nil {
		return Room{}, fmt.Errorf("rooms: store metadata: %w", err)
	}
	if err := d.client.Set(ctx, codeKey(room.Code), room.ID, d.ttl).Err(); err != nil {
		return Room{}, fmt.Errorf("rooms: store code alias: %w", err)
	}
	return room, nil
}

// Get looks a room up by ID or shareable code.
func (d *Directory) Get(ctx context.Context, identifier string) (Room, error) {
	id, err := d.Resolve(ctx, identifier)
	if err != nil {
		return Room{}, err
	}

	data, err := d.client.Get(ctx, roomKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("rooms: load metadata: %w", err)
	}

	var room Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return Room{}, fmt.Errorf("rooms: decode metadata: %w", err)
	}
	return room, nil
}

// Resolve maps a shareable code to its room ID; anything that is not a code
// is returned unchanged. Used by the WebSocket transport so patients can
// connect with the code from their appointment link.
func (d *Directory) Resolve(ctx context.Context, identifier string) (string, error) {
	if !looksLikeCode(identifier) {
		return identifier, nil
	}
	id, err := d.client.Get(ctx, codeKey(identifier)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("rooms: resolve code: %w", err)
	}
	return id, nil
}

// Delete removes a room and its code alias. Only the creator may delete.
func (d *Directory) Delete(ctx context.Context, identifier, userID string) error {
	room, err := d.Get(ctx, identifier)
	if err != nil {
		return err
	}
	if room.CreatorID != userID {
		return ErrNotCreator
	}
	if err := d.client.Del(ctx, roomKey(room.ID), codeKey(room.Code)).Err(); err != nil {
		return fmt.Errorf("rooms: delete: %w", err)
	}
	return nil
}

func roomKey(id string) string   { return "room:" + id }
func codeKey(code string) string { return "code:" + code }

// looksLikeCode distinguishes 8-char codes from UUIDs by length and alphabet.
func looksLikeCode(identifier string) bool {
	if len(identifier) != codeLength {
		return false
	}
	for i := 0; i < len(identifier); i++ {
		found := false
		for j := 0; j < len(codeChars); j++ {
			if identifier[i] == codeChars[j] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func generateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}
