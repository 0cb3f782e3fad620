// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package supervisor

import (
	"time"

	"github.com/ManuGH/bgpsim/internal/bgp"
)

// EventKind classifies why routes behind an interface were withdrawn.
type EventKind string

const (
	EventHoldDownExpired EventKind = "holddown_expired"
	EventSessionStopped  EventKind = "session_stopped"
)

// Event is raised once per invalid spell of a session, after its routes
// were withdrawn.
type Event struct {
	ID        string     `json:"id"`
	Kind      EventKind  `json:"kind"`
	Interface int        `json:"interface"`
	Peer      bgp.PeerID `json:"peer_id"`
	Withdrawn int        `json:"routes_withdrawn"`
	At        time.Time  `json:"at"`
}
