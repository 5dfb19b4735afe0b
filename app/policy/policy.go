// Package policy decides what a caller may do. Capabilities are granted
// per role; order reads are additionally allowed to the order's owner.
package policy

import (
	"net/http"

	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/pkg/apperr"
	"github.com/freshbulk/storefront/pkg/rbac"
	"github.com/freshbulk/storefront/pkg/response"
	"github.com/freshbulk/storefront/pkg/session"
)

const (
	ManageProducts    rbac.Capability = "products:manage"
	ManageOrderStatus rbac.Capability = "orders:manage-status"
	ViewAllOrders     rbac.Capability = "orders:view-all"
)

type Policy struct {
	grants *rbac.Policy
}

// Default grants every capability to admins and nothing to buyers.
func Default() *Policy {
	return &Policy{
		grants: rbac.New().Grant(models.RoleAdmin, ManageProducts, ManageOrderStatus, ViewAllOrders),
	}
}

// Can is false for anonymous callers.
func (p *Policy) Can(caller *models.User, c rbac.Capability) bool {
	return caller != nil && p.grants.Allows(caller.Role, c)
}

// Authorize returns apperr.ErrUnauthorized unless caller holds c.
func (p *Policy) Authorize(caller *models.User, c rbac.Capability) error {
	if !p.Can(caller, c) {
		return apperr.ErrUnauthorized
	}
	return nil
}

// CanRead is true for the order's owner and for callers who may view all
// orders. Delivery details play no part.
func (p *Policy) CanRead(order *models.Order, caller *models.User) bool {
	if caller == nil || order == nil {
		return false
	}
	return p.Can(caller, ViewAllOrders) || order.OwnedBy(caller.ID)
}

// ListScope returns the user id to filter orders by, or nil for all orders.
func (p *Policy) ListScope(caller *models.User) (*uint, error) {
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	if p.Can(caller, ViewAllOrders) {
		return nil, nil
	}
	id := caller.ID
	return &id, nil
}

// Require is route middleware rejecting callers without c with 401.
func (p *Policy) Require(c rbac.Capability) func(http.Handler) http.Handler {
	roleOf := func(r *http.Request) (string, bool) {
		u, ok := session.FromContext[*models.User](r.Context())
		if !ok || u == nil {
			return "", false
		}
		return u.Role, true
	}
	return p.grants.Require(c, roleOf, func(w http.ResponseWriter, _ *http.Request) {
		response.Unauthorized(w)
	})
}

// Authenticated rejects anonymous callers with 401.
func Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := session.FromContext[*models.User](r.Context()); !ok || u == nil {
			response.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
