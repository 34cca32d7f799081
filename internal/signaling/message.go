package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the WebRTC handshake message variants.
type Kind string

const (
	KindOffer     Kind = "offer"
	KindAnswer    Kind = "answer"
	KindCandidate Kind = "ice-candidate"
)

var (
	ErrMissingFrom    = errors.New("signaling: from is required")
	ErrMissingTo      = errors.New("signaling: to is required")
	ErrMissingSDP     = errors.New("signaling: sdp is required for offer/answer")
	ErrMissingPayload = errors.New("signaling: candidate is required for ice-candidate")
)

// Message is a point-to-point handshake envelope. Offer and answer carry an
// SDP blob; ice-candidate carries the browser's candidate descriptor. Both
// payloads are opaque and passed through unmodified.
type Message struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Kind      Kind            `json:"type"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Timestamp time.Time       `json:"-"`
}

// Validate checks the envelope before it is accepted into a room buffer.
func (m Message) Validate() error {
	if m.From == "" {
		return ErrMissingFrom
	}
	if m.To == "" {
		return ErrMissingTo
	}
	switch m.Kind {
	case KindOffer, KindAnswer:
		if m.SDP == "" {
			return ErrMissingSDP
		}
	case KindCandidate:
		if len(m.Candidate) == 0 {
			return ErrMissingPayload
		}
	default:
		return fmt.Errorf("signaling: unknown message type %q", m.Kind)
	}
	return nil
}
