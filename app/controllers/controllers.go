// Package controllers adapts HTTP requests to the services. Handlers bind
// input, pass the session's caller along and render the result; every
// decision is made by the services.
package controllers

import (
	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/pkg/ctx"
	"github.com/freshbulk/storefront/pkg/session"
)

// caller is nil for anonymous requests.
func caller(c *ctx.Context) *models.User {
	u, _ := session.FromContext[*models.User](c.Context())
	return u
}
