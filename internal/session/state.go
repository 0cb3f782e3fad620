// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"fmt"
	"time"

	"github.com/ManuGH/bgpsim/internal/bgp"
)

// State is the position of a session in its lifecycle.
type State int

const (
	Stopped State = iota
	Valid
	Invalid
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Valid:
		return "VALID"
	case Invalid:
		return "INVALID"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a point-in-time copy of a session for reporting.
type Snapshot struct {
	Interface         int        `json:"interface"`
	Peer              bgp.PeerID `json:"peer_id"`
	State             State      `json:"state"`
	Valid             bool       `json:"valid"`
	Parameters        Parameters `json:"parameters"`
	KeepaliveTime     int        `json:"keepalive_time"`
	HoldDownDeadline  *time.Time `json:"hold_down_deadline,omitempty"`
	KeepaliveDeadline *time.Time `json:"keepalive_deadline,omitempty"`
	KeepalivesSent    uint64     `json:"keepalives_sent"`
	Invalidations     uint64     `json:"invalidations"`
}
