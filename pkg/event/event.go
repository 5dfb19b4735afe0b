// Package event is an in-process publish/subscribe bus. Listeners run in
// registration order; FireAsync hands each listener to a worker pool so
// slow subscribers never hold up the publisher.
package event

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/freshbulk/storefront/pkg/logger"
	"github.com/freshbulk/storefront/pkg/metrics"
)

type Handler[T any] func(ctx context.Context, payload T)

// Submitter is satisfied by *workerpool.Pool.
type Submitter interface {
	Submit(task func()) error
}

type Bus[T any] struct {
	mu       sync.RWMutex
	handlers map[string][]Handler[T]
	async    Submitter
}

// New returns a bus. A nil pool makes FireAsync behave like Fire.
func New[T any](pool Submitter) *Bus[T] {
	return &Bus[T]{handlers: make(map[string][]Handler[T]), async: pool}
}

func (b *Bus[T]) Listen(topic string, h Handler[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

func (b *Bus[T]) listeners(topic string) []Handler[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Handler[T](nil), b.handlers[topic]...)
}

// Fire calls every listener of topic before returning. A panicking
// listener is logged and skipped.
func (b *Bus[T]) Fire(ctx context.Context, topic string, payload T) {
	for _, h := range b.listeners(topic) {
		call(ctx, topic, h, payload)
	}
}

// FireAsync queues every listener on the pool. The listeners keep the
// request's values but not its cancellation. When the pool is full the
// delivery is dropped and counted.
func (b *Bus[T]) FireAsync(ctx context.Context, topic string, payload T) {
	if b.async == nil {
		b.Fire(ctx, topic, payload)
		return
	}

	detached := context.WithoutCancel(ctx)
	for _, h := range b.listeners(topic) {
		h := h
		if err := b.async.Submit(func() { call(detached, topic, h, payload) }); err != nil {
			metrics.EventsDropped.WithLabelValues(topic).Inc()
			logger.WithCtx(ctx).Warn("event dropped", "event", topic, "error", err)
		}
	}
}

// Flush removes every listener.
func (b *Bus[T]) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string][]Handler[T])
}

func call[T any](ctx context.Context, topic string, h Handler[T], payload T) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.WithCtx(ctx).Error("event listener panicked",
				"event", topic,
				"error", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
			)
		}
	}()
	h(ctx, payload)
}
