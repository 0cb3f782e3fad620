// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package rib is an in-memory routing table keyed by the interface the
// routes were learned on.
package rib

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/bgpsim/internal/log"
)

// ErrInvalidPrefix is returned by Add for a zero or malformed prefix.
var ErrInvalidPrefix = errors.New("invalid prefix")

// Table is safe for concurrent use. Not durable.
type Table struct {
	mu     sync.RWMutex
	routes map[int][]netip.Prefix
	logger zerolog.Logger
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		routes: make(map[int][]netip.Prefix),
		logger: xglog.WithComponent("rib"),
	}
}

// Add installs p behind iface. The prefix is stored masked; adding the same
// prefix twice is a no-op.
func (t *Table) Add(iface int, p netip.Prefix) error {
	if iface < 0 {
		return fmt.Errorf("interface %d: must not be negative", iface)
	}
	if !p.IsValid() {
		return fmt.Errorf("interface %d: %w: %s", iface, ErrInvalidPrefix, p)
	}
	p = p.Masked()

	t.mu.Lock()
	defer t.mu.Unlock()
	if slices.Contains(t.routes[iface], p) {
		return nil
	}
	t.routes[iface] = append(t.routes[iface], p)
	return nil
}

// Routes returns a sorted copy of the prefixes behind iface.
func (t *Table) Routes(iface int) []netip.Prefix {
	t.mu.RLock()
	out := slices.Clone(t.routes[iface])
	t.mu.RUnlock()
	slices.SortFunc(out, comparePrefix)
	return out
}

// Len returns the total number of routes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, lst := range t.routes {
		n += len(lst)
	}
	return n
}

// WithdrawRoutes removes every route behind iface and reports how many were
// removed. Withdrawing an empty interface removes nothing and is not an error.
func (t *Table) WithdrawRoutes(ctx context.Context, iface int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("withdraw interface %d: %w", iface, err)
	}
	t.mu.Lock()
	n := len(t.routes[iface])
	delete(t.routes, iface)
	t.mu.Unlock()

	if n > 0 {
		t.logger.Info().
			Str(xglog.FieldEvent, "rib.withdrawn").
			Int(xglog.FieldInterface, iface).
			Int("routes", n).
			Msg("routes withdrawn")
	}
	return n, nil
}

func comparePrefix(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	return a.Bits() - b.Bits()
}
