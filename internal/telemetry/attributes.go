// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by every span bgpsim records.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	InterfaceKey       = "bgp.interface"
	PeerIDKey          = "bgp.peer_id"
	EventKindKey       = "bgp.event_kind"
	RoutesWithdrawnKey = "bgp.routes_withdrawn"

	CycleSessionsKey = "supervisor.sessions"
	CycleInvalidKey  = "supervisor.invalid"
)

// HTTPAttributes creates the attributes of an ops request span.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SessionAttributes identifies the session a span is about.
func SessionAttributes(iface int, peer int32) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(InterfaceKey, iface),
		attribute.Int(PeerIDKey, int(peer)),
	}
}
