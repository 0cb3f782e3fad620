// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func TestSessionCounters(t *testing.T) {
	before := counterValue(t, KeepalivesSentTotal.WithLabelValues("91"))
	IncKeepalivesSent(91)
	IncKeepalivesSent(91)
	require.Equal(t, before+2, counterValue(t, KeepalivesSentTotal.WithLabelValues("91")))

	before = counterValue(t, HoldDownExpiredTotal.WithLabelValues("91"))
	IncHoldDownExpired(91)
	require.Equal(t, before+1, counterValue(t, HoldDownExpiredTotal.WithLabelValues("91")))
}

func TestSetSessionValid(t *testing.T) {
	SetSessionValid(92, true)
	require.Equal(t, 1.0, gaugeValue(t, SessionValid.WithLabelValues("92")))
	SetSessionValid(92, false)
	require.Equal(t, 0.0, gaugeValue(t, SessionValid.WithLabelValues("92")))
}

func TestAddRoutesWithdrawnIgnoresNonPositive(t *testing.T) {
	before := counterValue(t, RoutesWithdrawnTotal.WithLabelValues("93"))
	AddRoutesWithdrawn(93, 0)
	AddRoutesWithdrawn(93, -1)
	require.Equal(t, before, counterValue(t, RoutesWithdrawnTotal.WithLabelValues("93")))
	AddRoutesWithdrawn(93, 4)
	require.Equal(t, before+4, counterValue(t, RoutesWithdrawnTotal.WithLabelValues("93")))
}

func TestIncBusDropReasonDefaults(t *testing.T) {
	before := counterValue(t, BusDroppedTotal.WithLabelValues("unknown", "unknown"))
	IncBusDropReason("", "")
	require.Equal(t, before+1, counterValue(t, BusDroppedTotal.WithLabelValues("unknown", "unknown")))
}
