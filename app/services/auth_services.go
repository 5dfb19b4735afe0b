// Package services holds the storefront workflows. Every operation takes
// the resolved caller where it matters and returns *apperr.Error values
// that the controllers render unchanged.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/app/repositories"
	"github.com/freshbulk/storefront/pkg/apperr"
	"github.com/freshbulk/storefront/pkg/auth"
	"github.com/freshbulk/storefront/pkg/logger"
	"github.com/freshbulk/storefront/pkg/metrics"
	"github.com/freshbulk/storefront/pkg/validate"
)

// Empty fields pass the tags and are reported by Register itself.
type RegisterInput struct {
	Name     string `json:"name"     validate:"max=255"`
	Email    string `json:"email"    validate:"nullable,email,max=255"`
	Password string `json:"password" validate:"max=72"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var errInvalidCredentials = apperr.Unauthorized("Invalid credentials")

type AuthService struct {
	users *repositories.UserRepository
}

func NewAuthService(users *repositories.UserRepository) *AuthService {
	return &AuthService{users: users}
}

// Register creates a buyer account. Registration never creates admins.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	name, email := strings.TrimSpace(in.Name), strings.TrimSpace(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, apperr.Validation("Name, email, and password are required")
	}
	if err := validate.Check(RegisterInput{Name: name, Email: email, Password: in.Password}); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("Registration failed", err)
	}

	user := &models.User{Name: name, Email: email, Password: hash, Role: models.RoleBuyer}
	switch err := s.users.Create(ctx, user); {
	case errors.Is(err, repositories.ErrDuplicate):
		return nil, apperr.Conflict("User already exists")
	case err != nil:
		return nil, apperr.Internal("Registration failed", err)
	}

	logger.WithCtx(ctx).Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login checks the credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		metrics.Logins.WithLabelValues("failure").Inc()
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Internal("Login failed", err)
	}
	if !auth.CheckPassword(user.Password, in.Password) {
		metrics.Logins.WithLabelValues("failure").Inc()
		return nil, errInvalidCredentials
	}

	metrics.Logins.WithLabelValues("success").Inc()
	return user, nil
}

// LoadUser backs the session resolver.
func (s *AuthService) LoadUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

// EnsureAdmin creates an admin account, or promotes the existing account
// with that email and resets its password. created reports which happened.
func (s *AuthService) EnsureAdmin(ctx context.Context, in RegisterInput) (user *models.User, created bool, err error) {
	name, email := strings.TrimSpace(in.Name), strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, false, apperr.Validation("Email and password are required")
	}
	if name == "" {
		name = "Administrator"
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, false, err
	}

	user, err = s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		user = &models.User{Name: name, Email: email, Password: hash, Role: models.RoleAdmin}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, false, err
		}
		return user, true, nil
	case err != nil:
		return nil, false, err
	}

	if err := s.users.SetRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return nil, false, err
	}
	if err := s.users.SetPassword(ctx, user.ID, hash); err != nil {
		return nil, false, err
	}
	user.Role = models.RoleAdmin
	user.Password = hash
	return user, false, nil
}
