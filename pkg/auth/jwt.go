// Package auth issues and verifies signed session tokens and hashes
// passwords.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken covers every reason a token cannot be trusted.
var ErrInvalidToken = errors.New("auth: invalid session token")

// Claims is the payload of a session token. Subject carries the user id and
// ID (jti) identifies the session for revocation.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	n, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || n == 0 {
		return 0, ErrInvalidToken
	}
	return uint(n), nil
}

// TokenCodec signs and verifies HS256 session tokens.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of issued tokens.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue creates a token for userID with a fresh session id.
func (c *TokenCodec) Issue(userID uint) (string, *Claims, error) {
	now := c.now()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, algorithm and expiry.
func (c *TokenCodec) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword returns a bcrypt hash of the plain-text password.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword compares a bcrypt hash against the plain-text candidate.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
