// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCorrelationID = "correlation_id"
	FieldEventID       = "event_id"
	FieldPeerID        = "peer_id"
	FieldInterface     = "interface"
	FieldTraceID       = "trace_id"
	FieldSpanID        = "span_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Timer fields
	FieldTimer        = "timer"
	FieldDeadline     = "deadline"
	FieldHoldDownTime = "hold_down_time"
	FieldKeepalive    = "keepalive_time"
)
