// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"errors"
	"fmt"
)

// ErrInvalidParameters classifies rejected timer parameters.
// Use errors.Is(err, ErrInvalidParameters); errors.As yields *ConfigError.
var ErrInvalidParameters = errors.New("invalid session parameters")

// ConfigError describes a single rejected session parameter.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", ErrInvalidParameters, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidParameters }
