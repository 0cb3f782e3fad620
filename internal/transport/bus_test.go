// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/bgpsim/internal/bgp"
	"github.com/ManuGH/bgpsim/internal/metrics"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "iface/0", Topic(0))
	assert.Equal(t, "iface/12", Topic(12))
}

func TestMemoryBus_DeliversToEverySubscriber(t *testing.T) {
	b := NewMemoryBus()
	a, err := b.Subscribe(Topic(1))
	require.NoError(t, err)
	c, err := b.Subscribe(Topic(1))
	require.NoError(t, err)
	other, err := b.Subscribe(Topic(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	before := getCounterValue(t, metrics.BusPublishedTotal.WithLabelValues(Topic(1)))
	require.NoError(t, b.Publish(context.Background(), Topic(1), bgp.Keepalive(1)))

	assert.Equal(t, bgp.Keepalive(1), <-a.C())
	assert.Equal(t, bgp.Keepalive(1), <-c.C())
	assert.Empty(t, other.C())
	assert.Equal(t, before+2, getCounterValue(t, metrics.BusPublishedTotal.WithLabelValues(Topic(1))))
}

func TestMemoryBus_PublishWithoutSubscribers(t *testing.T) {
	b := NewMemoryBus()
	require.NoError(t, b.Publish(context.Background(), Topic(9), bgp.Keepalive(9)))
}

func TestMemoryBus_PublishTimeoutIncrementsDropMetrics(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe("topic")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	// Fill the subscriber so the next publish blocks.
	for i := 0; i < cap(sub.C()); i++ {
		require.NoError(t, b.Publish(context.Background(), "topic", bgp.Keepalive(0)))
	}

	initial := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("topic", "timeout"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = b.Publish(ctx, "topic", bgp.Keepalive(0))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Greater(t, getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("topic", "timeout")), initial)
	assert.EqualValues(t, 1, b.Dropped())
}

func TestMemoryBus_PublishRejectsNilContext(t *testing.T) {
	b := NewMemoryBus()
	//nolint:staticcheck // nil context is rejected explicitly
	err := b.Publish(nil, "topic", bgp.Keepalive(0))
	require.Error(t, err)
	require.Contains(t, err.Error(), "context is nil")
}

func TestMemoryBus_SubscriptionClose(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe("topic")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, open := <-sub.C()
	assert.False(t, open)

	require.NoError(t, b.Publish(context.Background(), "topic", bgp.Keepalive(0)))
}

func fill(t *testing.T, b *MemoryBus, topic string, sub Subscription) {
	t.Helper()
	for i := 0; i < cap(sub.C()); i++ {
		require.NoError(t, b.Publish(context.Background(), topic, bgp.Keepalive(0)))
	}
}

func TestMemoryBus_SubscriptionCloseReleasesBlockedPublish(t *testing.T) {
	b := NewMemoryBus()
	t.Cleanup(func() { _ = b.Close() })
	sub, err := b.Subscribe("topic")
	require.NoError(t, err)
	fill(t, b, "topic", sub)

	published := make(chan error, 1)
	go func() { published <- b.Publish(context.Background(), "topic", bgp.Keepalive(0)) }()

	// Let the publish reach the full subscriber before closing it.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sub.Close())

	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("publish still blocked after the subscription closed")
	}

	n := 0
	for range sub.C() {
		n++
	}
	assert.Equal(t, DefaultSubscriberBuffer, n, "buffered messages still drain after close")
}

func TestMemoryBus_CloseReleasesBlockedPublish(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe("topic")
	require.NoError(t, err)
	fill(t, b, "topic", sub)

	published := make(chan error, 1)
	go func() { published <- b.Publish(context.Background(), "topic", bgp.Keepalive(0)) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-published:
		assert.ErrorIs(t, err, ErrBusClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("publish still blocked after the bus closed")
	}
}

func TestMemoryBus_Close(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe("topic")
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	_, open := <-sub.C()
	assert.False(t, open)
	require.NoError(t, sub.Close(), "closing after the bus is a no-op")

	assert.ErrorIs(t, b.Publish(context.Background(), "topic", bgp.Keepalive(0)), ErrBusClosed)
	_, err = b.Subscribe("topic")
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestSink_PublishesOnInterfaceTopic(t *testing.T) {
	b := NewMemoryBus()
	t.Cleanup(func() { _ = b.Close() })
	sub, err := b.Subscribe(Topic(3))
	require.NoError(t, err)

	s := NewSink(b, 0)
	require.NoError(t, s.Emit(bgp.Message{Type: bgp.MessageUpdate, Source: 7}, 3))

	got := <-sub.C()
	assert.Equal(t, bgp.MessageUpdate, got.Type)
	assert.Equal(t, 3, got.Interface)
	assert.Equal(t, bgp.PeerID(7), got.Source)
}

func TestSink_TimesOutOnStalledSubscriber(t *testing.T) {
	b := NewMemoryBus()
	t.Cleanup(func() { _ = b.Close() })
	sub, err := b.Subscribe(Topic(0))
	require.NoError(t, err)
	for i := 0; i < cap(sub.C()); i++ {
		require.NoError(t, b.Publish(context.Background(), Topic(0), bgp.Keepalive(0)))
	}

	s := NewSink(b, 10*time.Millisecond)
	start := time.Now()
	err = s.Emit(bgp.Keepalive(0), 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
