// Package routes declares the storefront's HTTP surface.
package routes

import (
	"net/http"

	"github.com/freshbulk/storefront/app/controllers"
	"github.com/freshbulk/storefront/app/policy"
	"github.com/freshbulk/storefront/pkg/ctx"
	"github.com/freshbulk/storefront/pkg/metrics"
	"github.com/freshbulk/storefront/pkg/router"
)

// Controllers is everything the route table dispatches to. GraphQL and
// Files may be nil to leave those endpoints out.
type Controllers struct {
	Auth     *controllers.AuthController
	Products *controllers.ProductController
	Orders   *controllers.OrderController
	Health   *controllers.HealthController
	GraphQL  http.HandlerFunc
	Files    http.Handler
	Policy   *policy.Policy
}

func RegisterAPI(r *router.Router, c Controllers) {
	r.Get("/healthz", "health", ctx.Wrap(c.Health.Show))
	r.Get("/metrics", "metrics", metrics.Handler())

	auth := r.Group("/auth")
	auth.Post("/register", "auth.register", ctx.Wrap(c.Auth.Register))
	auth.Post("/login", "auth.login", ctx.Wrap(c.Auth.Login))
	auth.Post("/logout", "auth.logout", ctx.Wrap(c.Auth.Logout))
	auth.Get("/me", "auth.me", ctx.Wrap(c.Auth.Me))

	products := r.Group("/products")
	products.Get("/", "products.index", ctx.Wrap(c.Products.Index))
	products.Get("/{id}", "products.show", ctx.Wrap(c.Products.Show))

	manage := products.Group("/", c.Policy.Require(policy.ManageProducts))
	manage.Post("/", "products.store", ctx.Wrap(c.Products.Store))
	manage.Put("/{id}", "products.update", ctx.Wrap(c.Products.Update))
	manage.Delete("/{id}", "products.destroy", ctx.Wrap(c.Products.Destroy))
	manage.Post("/{id}/image", "products.image", ctx.Wrap(c.Products.UploadImage))

	orders := r.Group("/orders", policy.Authenticated)
	orders.Get("/", "orders.index", ctx.Wrap(c.Orders.Index))
	orders.Post("/", "orders.store", ctx.Wrap(c.Orders.Store))
	orders.Get("/{id}", "orders.show", ctx.Wrap(c.Orders.Show))
	orders.Put("/{id}", "orders.status", ctx.Wrap(c.Orders.UpdateStatus), c.Policy.Require(policy.ManageOrderStatus))
	orders.Get("/{id}/history", "orders.history", ctx.Wrap(c.Orders.History))
	orders.Get("/{id}/live", "orders.live", ctx.Wrap(c.Orders.Live))

	if c.GraphQL != nil {
		r.Get("/graphql", "graphql.query", c.GraphQL)
		r.Post("/graphql", "graphql", c.GraphQL)
	}
	if c.Files != nil {
		r.Mount("/storage", "storage", http.StripPrefix("/storage", c.Files))
	}
}
