// Package cart stages an order before submission. A Cart is a value: every
// operation returns a new Cart and leaves the receiver untouched, so a
// checkout flow can pass it around without shared mutable state.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/app/services"
	"github.com/freshbulk/storefront/pkg/apperr"
	"github.com/freshbulk/storefront/pkg/collection"
)

// Line is one product in the cart with the snapshot it was added with.
type Line struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart keeps lines in the order products were first added.
type Cart struct {
	lines []Line
}

// Add puts one more unit of p in the cart.
func (c Cart) Add(p models.Product) Cart {
	for i, l := range c.lines {
		if l.Product.ID == p.ID {
			out := c.clone()
			out.lines[i].Quantity++
			return out
		}
	}
	out := c.clone()
	out.lines = append(out.lines, Line{Product: p, Quantity: 1})
	return out
}

// SetQuantity changes a line's quantity; q <= 0 removes the line. Unknown
// products are ignored.
func (c Cart) SetQuantity(productID uint, q int) Cart {
	if q <= 0 {
		return c.Remove(productID)
	}
	out := c.clone()
	for i := range out.lines {
		if out.lines[i].Product.ID == productID {
			out.lines[i].Quantity = q
		}
	}
	return out
}

func (c Cart) Remove(productID uint) Cart {
	return Cart{lines: collection.Reject(c.lines, func(l Line) bool { return l.Product.ID == productID })}
}

func (Cart) Clear() Cart { return Cart{} }

// Lines returns a copy of the lines.
func (c Cart) Lines() []Line { return c.clone().lines }

// Total is Σ price × quantity.
func (c Cart) Total() decimal.Decimal {
	return collection.Reduce(c.lines, decimal.Zero, func(acc decimal.Decimal, l Line) decimal.Decimal {
		return acc.Add(l.Subtotal())
	})
}

// Count is the total number of units.
func (c Cart) Count() int {
	return collection.Reduce(c.lines, 0, func(acc int, l Line) int { return acc + l.Quantity })
}

func (c Cart) Empty() bool { return len(c.lines) == 0 }

// Checkout turns the cart into an order request. Delivery details are
// checked by the order service.
func (c Cart) Checkout(d services.DeliveryDetails) (services.CreateOrderInput, error) {
	if c.Empty() {
		return services.CreateOrderInput{}, apperr.Validation("Cart is empty")
	}
	return services.CreateOrderInput{
		Items: collection.Map(c.lines, func(l Line) services.OrderLine {
			return services.OrderLine{ProductID: l.Product.ID, Quantity: l.Quantity}
		}),
		Delivery: d,
	}, nil
}

func (c Cart) clone() Cart {
	return Cart{lines: append([]Line(nil), c.lines...)}
}
