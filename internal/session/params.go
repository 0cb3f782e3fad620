// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

// Default timer parameters, in time units.
const (
	DefaultHoldDownTime      = 180
	DefaultKeepaliveFraction = 3
)

// Parameters are the negotiated timer values of a session, expressed in
// abstract time units (see Options.Unit).
type Parameters struct {
	HoldDownTime      int `json:"hold_down_time" yaml:"hold_down_time"`
	KeepaliveFraction int `json:"keepalive_fraction" yaml:"keepalive_fraction"`
}

// DefaultParameters returns 180 / 3, i.e. a keepalive every 60 units.
func DefaultParameters() Parameters {
	return Parameters{
		HoldDownTime:      DefaultHoldDownTime,
		KeepaliveFraction: DefaultKeepaliveFraction,
	}
}

// KeepaliveTime is HoldDownTime divided by KeepaliveFraction (integer division).
func (p Parameters) KeepaliveTime() int {
	if p.KeepaliveFraction <= 0 {
		return 0
	}
	return p.HoldDownTime / p.KeepaliveFraction
}

// Validate enforces HoldDownTime > KeepaliveTime >= 1. Values are never clamped.
func (p Parameters) Validate() error {
	if p.HoldDownTime <= 0 {
		return &ConfigError{Field: "hold_down_time", Value: p.HoldDownTime, Reason: "must be positive"}
	}
	if p.KeepaliveFraction <= 0 {
		return &ConfigError{Field: "keepalive_fraction", Value: p.KeepaliveFraction, Reason: "must be positive"}
	}
	ka := p.KeepaliveTime()
	if ka < 1 {
		return &ConfigError{
			Field:  "keepalive_fraction",
			Value:  p.KeepaliveFraction,
			Reason: "derived keepalive interval is zero (hold_down_time smaller than keepalive_fraction)",
		}
	}
	if p.HoldDownTime <= ka {
		return &ConfigError{
			Field:  "keepalive_fraction",
			Value:  p.KeepaliveFraction,
			Reason: "keepalive interval must be shorter than hold_down_time",
		}
	}
	return nil
}
