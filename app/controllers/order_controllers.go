package controllers

import (
	"github.com/freshbulk/storefront/app/events"
	"github.com/freshbulk/storefront/app/services"
	"github.com/freshbulk/storefront/pkg/apperr"
	"github.com/freshbulk/storefront/pkg/ctx"
	"github.com/freshbulk/storefront/pkg/ws"
)

var errOrderNotFound = apperr.NotFound("Order not found")

type OrderController struct {
	orders *services.OrderService
	hub    *ws.Hub
}

// NewOrderController wires the order endpoints. Without a hub the live
// tracking endpoint answers 404.
func NewOrderController(orders *services.OrderService, hub *ws.Hub) *OrderController {
	return &OrderController{orders: orders, hub: hub}
}

func (oc *OrderController) Index(c *ctx.Context) {
	orders, err := oc.orders.List(c.Context(), caller(c))
	if err != nil {
		c.Fail(err)
		return
	}
	c.OK(orders)
}

func (oc *OrderController) Store(c *ctx.Context) {
	var in services.CreateOrderInput
	if !c.BindJSON(&in) {
		return
	}
	o, err := oc.orders.Create(c.Context(), caller(c), in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(o)
}

func (oc *OrderController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.Fail(errOrderNotFound)
		return
	}
	o, err := oc.orders.Get(c.Context(), caller(c), id)
	if err != nil {
		c.Fail(err)
		return
	}
	c.OK(o)
}

// UpdateStatus handles PUT /orders/{id} with {"status": ...}.
func (oc *OrderController) UpdateStatus(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.Fail(errOrderNotFound)
		return
	}
	var in services.SetStatusInput
	if !c.BindJSON(&in) {
		return
	}
	o, err := oc.orders.SetStatus(c.Context(), caller(c), id, in.Status)
	if err != nil {
		c.Fail(err)
		return
	}
	c.OK(o)
}

func (oc *OrderController) History(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.Fail(errOrderNotFound)
		return
	}
	entries, err := oc.orders.History(c.Context(), caller(c), id)
	if err != nil {
		c.Fail(err)
		return
	}
	c.OK(entries)
}

// Live upgrades to a websocket that first receives the order's current
// status and then every later status change.
func (oc *OrderController) Live(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok || oc.hub == nil {
		c.Fail(errOrderNotFound)
		return
	}
	o, err := oc.orders.Get(c.Context(), caller(c), id)
	if err != nil {
		c.Fail(err)
		return
	}
	if err := oc.hub.Upgrade(c.W, c.R, events.LiveTopic(o.ID), events.LiveMessage(o)); err != nil {
		c.Logger().Debug("live tracking upgrade failed", "order_id", o.ID, "error", err)
	}
}
