package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/freshbulk/storefront/app/events"
	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/app/policy"
	"github.com/freshbulk/storefront/app/repositories"
	"github.com/freshbulk/storefront/pkg/apperr"
	"github.com/freshbulk/storefront/pkg/audit"
	"github.com/freshbulk/storefront/pkg/collection"
	"github.com/freshbulk/storefront/pkg/logger"
	"github.com/freshbulk/storefront/pkg/reqid"
	"github.com/freshbulk/storefront/pkg/validate"
)

// HistoryLimit caps the audit entries returned for one order.
const HistoryLimit = 100

var (
	errOrderNotFound = apperr.NotFound("Order not found")
	errNoItems       = apperr.Validation("Items array is required and cannot be empty")
	errBadItem       = apperr.Validation("Each item must have a valid productId and quantity > 0")
	errBadDelivery   = apperr.Validation("Name, contact, and address are required in delivery details")
	errBadStatus     = apperr.Validation("Valid status is required")
)

type OrderLine struct {
	ProductID uint `json:"productId"`
	Quantity  int  `json:"quantity"`
}

type DeliveryDetails struct {
	Name    string `json:"name"    validate:"max=255"`
	Contact string `json:"contact" validate:"max=255"`
	Address string `json:"address" validate:"max=2000"`
}

type CreateOrderInput struct {
	Items    []OrderLine     `json:"items"`
	Delivery DeliveryDetails `json:"deliveryDetails"`
}

func (in *CreateOrderInput) normalize() error {
	if len(in.Items) == 0 {
		return errNoItems
	}
	for _, it := range in.Items {
		if it.ProductID == 0 || it.Quantity <= 0 {
			return errBadItem
		}
	}
	d := &in.Delivery
	d.Name = strings.TrimSpace(d.Name)
	d.Contact = strings.TrimSpace(d.Contact)
	d.Address = strings.TrimSpace(d.Address)
	if d.Name == "" || d.Contact == "" || d.Address == "" {
		return errBadDelivery
	}
	return validate.Check(d)
}

type SetStatusInput struct {
	Status string `json:"status"`
}

type OrderService struct {
	db       *gorm.DB
	orders   *repositories.OrderRepository
	products *repositories.ProductRepository
	policy   *policy.Policy
	bus      *events.Bus
	trail    audit.Recorder
	now      func() time.Time
}

// NewOrderService wires the order workflow. bus and trail may be nil.
func NewOrderService(db *gorm.DB, p *policy.Policy, bus *events.Bus, trail audit.Recorder) *OrderService {
	return &OrderService{
		db:       db,
		orders:   repositories.NewOrderRepository(db),
		products: repositories.NewProductRepository(db),
		policy:   p,
		bus:      bus,
		trail:    trail,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create places an order for caller. The order row and all of its items are
// written in one transaction: if any product is missing or archived nothing
// is persisted. Each item captures the product's price at this moment.
func (s *OrderService) Create(ctx context.Context, caller *models.User, in CreateOrderInput) (*models.Order, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	uid := caller.ID
	order := &models.Order{
		UserID:          &uid,
		Status:          models.StatusPending,
		DeliveryName:    in.Delivery.Name,
		DeliveryContact: in.Delivery.Contact,
		DeliveryAddress: in.Delivery.Address,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		products := s.products.WithTx(tx)

		if err := orders.Create(ctx, order); err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(in.Items))
		for _, line := range in.Items {
			p, err := products.Find(ctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("product %d: %w", line.ProductID, err)
			}
			items = append(items, models.OrderItem{
				OrderID:   order.ID,
				ProductID: p.ID,
				Quantity:  line.Quantity,
				Price:     p.Price,
			})
		}
		return orders.AddItems(ctx, items)
	})
	if err != nil {
		return nil, apperr.Internal("Failed to create order", err)
	}

	created, err := s.load(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	logger.WithCtx(ctx).Info("order created", "order_id", created.ID, "user_id", uid, "items", len(created.Items))
	s.publish(ctx, events.OrderEvent{
		Type:    events.OrderCreated,
		OrderID: created.ID,
		UserID:  created.UserID,
		Status:  created.Status,
		Items:   len(created.Items),
		ActorID: &uid,
		At:      created.CreatedAt,
	})
	return created, nil
}

// SetStatus assigns any of the three statuses regardless of the current
// one. Setting the same status again only moves updated_at.
func (s *OrderService) SetStatus(ctx context.Context, caller *models.User, id uint, raw string) (*models.Order, error) {
	if err := s.policy.Authorize(caller, policy.ManageOrderStatus); err != nil {
		return nil, err
	}
	status, err := models.ParseOrderStatus(raw)
	if err != nil {
		return nil, errBadStatus
	}

	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	at := s.now()
	switch err := s.orders.SetStatus(ctx, id, status, at); {
	case errors.Is(err, repositories.ErrNotFound):
		return nil, errOrderNotFound
	case err != nil:
		return nil, apperr.Internal("Failed to update order", err)
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	logger.WithCtx(ctx).Info("order status set", "order_id", id, "from", current.Status, "to", status, "by", caller.ID)
	actor := caller.ID
	s.publish(ctx, events.OrderEvent{
		Type:     events.OrderStatusChanged,
		OrderID:  id,
		UserID:   updated.UserID,
		Status:   status,
		Previous: current.Status,
		ActorID:  &actor,
		At:       updated.UpdatedAt,
	})
	return updated, nil
}

// List returns every order for admins and the caller's own orders
// otherwise, newest first.
func (s *OrderService) List(ctx context.Context, caller *models.User) ([]models.Order, error) {
	scope, err := s.policy.ListScope(caller)
	if err != nil {
		return nil, err
	}

	orders, err := s.orders.List(ctx, scope)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch orders", err)
	}

	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := s.attachProducts(ctx, ptrs...); err != nil {
		return nil, err
	}
	return orders, nil
}

// Get returns one order with its items if caller may read it.
func (s *OrderService) Get(ctx context.Context, caller *models.User, id uint) (*models.Order, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanRead(o, caller) {
		return nil, apperr.ErrUnauthorized
	}
	return o, nil
}

// History returns the recorded events of an order, oldest first, under the
// same access rule as Get.
func (s *OrderService) History(ctx context.Context, caller *models.User, id uint) ([]audit.Entry, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	if s.trail == nil {
		return []audit.Entry{}, nil
	}
	entries, err := s.trail.History(ctx, events.LiveTopic(id), HistoryLimit)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch order history", err)
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return entries, nil
}

func (s *OrderService) find(ctx context.Context, id uint) (*models.Order, error) {
	o, err := s.orders.Find(ctx, id)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil, errOrderNotFound
	case err != nil:
		return nil, apperr.Internal("Failed to fetch order", err)
	}
	return o, nil
}

// load is find plus the products behind each item.
func (s *OrderService) load(ctx context.Context, id uint) (*models.Order, error) {
	o, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachProducts(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// attachProducts resolves item products including archived ones. An item
// whose product row is gone keeps a nil Product.
func (s *OrderService) attachProducts(ctx context.Context, orders ...*models.Order) error {
	ids := collection.Unique(collection.Flatten(collection.Map(orders, func(o *models.Order) []uint {
		return collection.Map(o.Items, func(it models.OrderItem) uint { return it.ProductID })
	})))

	products, err := s.products.FindIncludingArchived(ctx, ids)
	if err != nil {
		return apperr.Internal("Failed to fetch orders", err)
	}
	byID := collection.KeyBy(products, func(p models.Product) uint { return p.ID })

	for _, o := range orders {
		for i := range o.Items {
			if p, ok := byID[o.Items[i].ProductID]; ok {
				o.Items[i].Product = &p
			}
		}
	}
	return nil
}

func (s *OrderService) publish(ctx context.Context, e events.OrderEvent) {
	if s.bus == nil {
		return
	}
	e.RequestID = reqid.FromCtx(ctx)
	s.bus.FireAsync(ctx, e.Type, e)
}
