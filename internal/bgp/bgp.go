// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bgp holds the small shared vocabulary used by the session core and
// its collaborators. It deliberately carries no wire encoding.
package bgp

import "strconv"

// PeerID is the 32-bit BGP identifier of a session peer.
type PeerID int32

// NoPeer marks a session that has not been bound to a peer yet.
// Real BGP identifiers are non-zero.
const NoPeer PeerID = 0

// IsSet reports whether the identifier names an actual peer.
func (p PeerID) IsSet() bool { return p != NoPeer }

func (p PeerID) String() string {
	if !p.IsSet() {
		return "unset"
	}
	return strconv.FormatInt(int64(p), 10)
}

// MessageType names the BGP message kinds the core distinguishes.
type MessageType string

const (
	MessageOpen         MessageType = "OPEN"
	MessageUpdate       MessageType = "UPDATE"
	MessageNotification MessageType = "NOTIFICATION"
	MessageKeepalive    MessageType = "KEEPALIVE"
)

// Message is an opaque outbound message envelope.
type Message struct {
	Type      MessageType
	Source    PeerID // local identifier, NoPeer if unknown
	Interface int
}

// Keepalive builds a keepalive envelope for the given interface.
func Keepalive(iface int) Message {
	return Message{Type: MessageKeepalive, Interface: iface}
}

// Inbound is the notification a transport delivers when a message from a
// peer arrives on an interface. Contents are not parsed.
type Inbound struct {
	Peer      PeerID
	Interface int
	Type      MessageType
}
