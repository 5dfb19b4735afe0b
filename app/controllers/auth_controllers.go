package controllers

import (
	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/app/services"
	"github.com/freshbulk/storefront/pkg/apperr"
	"github.com/freshbulk/storefront/pkg/ctx"
	"github.com/freshbulk/storefront/pkg/session"
)

type AuthController struct {
	auth     *services.AuthService
	sessions *session.Manager[*models.User]
}

func NewAuthController(auth *services.AuthService, sessions *session.Manager[*models.User]) *AuthController {
	return &AuthController{auth: auth, sessions: sessions}
}

// Register creates a buyer and signs them in.
func (a *AuthController) Register(c *ctx.Context) {
	var in services.RegisterInput
	if !c.BindJSON(&in) {
		return
	}

	user, err := a.auth.Register(c.Context(), in)
	if err != nil {
		c.Fail(err)
		return
	}
	if err := a.sessions.Start(c.W, user.ID); err != nil {
		c.Fail(apperr.Internal("Registration failed", err))
		return
	}
	c.Created(user)
}

func (a *AuthController) Login(c *ctx.Context) {
	var in services.LoginInput
	if !c.BindJSON(&in) {
		return
	}

	user, err := a.auth.Login(c.Context(), in)
	if err != nil {
		c.Fail(err)
		return
	}
	if err := a.sessions.Start(c.W, user.ID); err != nil {
		c.Fail(apperr.Internal("Login failed", err))
		return
	}
	c.OK(user)
}

// Logout always succeeds; the cookie is cleared even if revocation fails.
func (a *AuthController) Logout(c *ctx.Context) {
	if err := a.sessions.End(c.W, c.R); err != nil {
		c.Logger().Warn("session revocation failed", "error", err)
	}
	c.Message("Logged out successfully")
}

// Me returns {"user": null} for anonymous callers.
func (a *AuthController) Me(c *ctx.Context) {
	c.OK(map[string]*models.User{"user": caller(c)})
}
