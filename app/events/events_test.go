package events_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshbulk/storefront/app/events"
	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/pkg/audit"
	"github.com/freshbulk/storefront/pkg/metrics"
)

type fakeHub struct {
	mu   sync.Mutex
	sent map[string][][]byte
}

func (h *fakeHub) Publish(topic string, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sent == nil {
		h.sent = map[string][][]byte{}
	}
	h.sent[topic] = append(h.sent[topic], data)
	return true
}

func TestListeners(t *testing.T) {
	ctx := context.Background()
	rec := audit.NewMemoryRecorder()
	hub := &fakeHub{}
	bus := events.NewBus(nil)
	events.Register(bus, rec, hub)

	admin := uint(1)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	created := testutil.ToFloat64(metrics.OrdersCreated)
	delivered := testutil.ToFloat64(metrics.OrderStatusChanges.WithLabelValues("Delivered"))

	bus.FireAsync(ctx, events.OrderCreated, events.OrderEvent{
		Type: events.OrderCreated, OrderID: 42, Status: models.StatusPending, Items: 2, At: at,
	})
	bus.FireAsync(ctx, events.OrderStatusChanged, events.OrderEvent{
		Type: events.OrderStatusChanged, OrderID: 42, Status: models.StatusDelivered,
		Previous: models.StatusPending, ActorID: &admin, RequestID: "req-1", At: at.Add(time.Hour),
	})

	assert.Equal(t, created+1, testutil.ToFloat64(metrics.OrdersCreated))
	assert.Equal(t, delivered+1, testutil.ToFloat64(metrics.OrderStatusChanges.WithLabelValues("Delivered")))

	history, err := rec.History(ctx, "order:42", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, events.OrderCreated, history[0].Event)
	assert.Equal(t, 2, history[0].Data["items"])
	assert.Equal(t, "Pending", history[1].Data["previous"])
	assert.Equal(t, "req-1", history[1].RequestID)
	assert.Equal(t, &admin, history[1].ActorID)

	require.Len(t, hub.sent["order:42"], 1, "only status changes are pushed live")
	var live events.LiveUpdate
	require.NoError(t, json.Unmarshal(hub.sent["order:42"][0], &live))
	assert.Equal(t, models.StatusDelivered, live.Status)
	assert.True(t, at.Add(time.Hour).Equal(live.UpdatedAt))
}

func TestLiveMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msg := events.LiveMessage(&models.Order{ID: 5, Status: models.StatusInProgress, UpdatedAt: at})
	assert.JSONEq(t, `{"order_id":5,"status":"In Progress","updated_at":"2026-03-01T09:00:00Z"}`, string(msg))
	assert.Equal(t, "order:5", events.LiveTopic(5))
}
