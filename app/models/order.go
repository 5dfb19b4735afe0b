package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order. Any status may follow any
// other; there is no enforced progression.
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusInProgress OrderStatus = "In Progress"
	StatusDelivered  OrderStatus = "Delivered"
)

// OrderStatuses lists every valid status in display order.
var OrderStatuses = []OrderStatus{StatusPending, StatusInProgress, StatusDelivered}

// ParseOrderStatus accepts exactly one of the three status names.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// Order is a placed order. UserID is nullable so orders survive the removal
// of their buyer.
type Order struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	UserID          *uint       `gorm:"index" json:"user_id"`
	Status          OrderStatus `gorm:"size:20;not null;default:Pending" json:"status"`
	DeliveryName    string      `gorm:"size:255;not null" json:"delivery_name"`
	DeliveryContact string      `gorm:"size:255;not null" json:"delivery_contact"`
	DeliveryAddress string      `gorm:"type:text;not null" json:"delivery_address"`
	CreatedAt       time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Items           []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// OwnedBy reports whether userID placed the order.
func (o *Order) OwnedBy(userID uint) bool {
	return o.UserID != nil && *o.UserID == userID
}

// Total is Σ price × quantity over the loaded items.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// OrderItem is one line of an order. Price is the product's price at the
// moment the order was placed and never changes afterwards. ProductID is a
// plain column with no foreign key: the product may be archived later.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"index;not null" json:"order_id"`
	ProductID uint            `gorm:"index;not null" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	Product   *Product        `gorm:"-" json:"product"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
