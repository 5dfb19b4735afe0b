// Package events defines the order lifecycle events and the listeners that
// react to them: the audit trail, live tracking and business metrics.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/pkg/audit"
	"github.com/freshbulk/storefront/pkg/event"
	"github.com/freshbulk/storefront/pkg/logger"
	"github.com/freshbulk/storefront/pkg/metrics"
)

const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
)

// OrderEvent describes something that happened to an order. Previous is
// empty for OrderCreated.
type OrderEvent struct {
	Type      string
	OrderID   uint
	UserID    *uint
	Status    models.OrderStatus
	Previous  models.OrderStatus
	Items     int
	ActorID   *uint
	RequestID string
	At        time.Time
}

type Bus = event.Bus[OrderEvent]

func NewBus(pool event.Submitter) *Bus {
	return event.New[OrderEvent](pool)
}

// Publisher delivers a live update to the subscribers of a topic.
type Publisher interface {
	Publish(topic string, data []byte) bool
}

// LiveTopic is the tracking topic of one order.
func LiveTopic(orderID uint) string { return audit.Subject("order", orderID) }

// LiveUpdate is what tracking clients receive.
type LiveUpdate struct {
	OrderID   uint               `json:"order_id"`
	Status    models.OrderStatus `json:"status"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func LiveMessage(o *models.Order) []byte {
	raw, _ := json.Marshal(LiveUpdate{OrderID: o.ID, Status: o.Status, UpdatedAt: o.UpdatedAt})
	return raw
}

// Register subscribes the standard listeners. rec and live may be nil.
func Register(bus *Bus, rec audit.Recorder, live Publisher) {
	bus.Listen(OrderCreated, countCreated)
	bus.Listen(OrderStatusChanged, countStatusChange)

	if rec != nil {
		record := recordTo(rec)
		bus.Listen(OrderCreated, record)
		bus.Listen(OrderStatusChanged, record)
	}
	if live != nil {
		bus.Listen(OrderStatusChanged, publishTo(live))
	}
}

func countCreated(context.Context, OrderEvent) {
	metrics.OrdersCreated.Inc()
}

func countStatusChange(_ context.Context, e OrderEvent) {
	metrics.OrderStatusChanges.WithLabelValues(string(e.Status)).Inc()
}

func recordTo(rec audit.Recorder) event.Handler[OrderEvent] {
	return func(ctx context.Context, e OrderEvent) {
		data := map[string]any{"status": string(e.Status)}
		if e.Previous != "" {
			data["previous"] = string(e.Previous)
		}
		if e.Items > 0 {
			data["items"] = e.Items
		}
		err := rec.Record(ctx, audit.Entry{
			At:        e.At,
			Event:     e.Type,
			Subject:   LiveTopic(e.OrderID),
			ActorID:   e.ActorID,
			RequestID: e.RequestID,
			Data:      data,
		})
		if err != nil {
			logger.WithCtx(ctx).Error("audit: record failed", "event", e.Type, "order_id", e.OrderID, "error", err)
		}
	}
}

func publishTo(live Publisher) event.Handler[OrderEvent] {
	return func(_ context.Context, e OrderEvent) {
		msg, _ := json.Marshal(LiveUpdate{OrderID: e.OrderID, Status: e.Status, UpdatedAt: e.At})
		live.Publish(LiveTopic(e.OrderID), msg)
	}
}
