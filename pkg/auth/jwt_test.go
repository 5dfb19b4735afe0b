package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	c := NewTokenCodec("secret", time.Hour)

	token, issued, err := c.Issue(42)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := c.Parse(token)
	require.NoError(t, err)
	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), uid)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestEachIssueHasDistinctSessionID(t *testing.T) {
	c := NewTokenCodec("secret", time.Hour)
	_, a, _ := c.Issue(1)
	_, b, _ := c.Issue(1)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestParseRejects(t *testing.T) {
	c := NewTokenCodec("secret", time.Hour)
	good, _, err := c.Issue(7)
	require.NoError(t, err)

	other, _, err := NewTokenCodec("other-secret", time.Hour).Issue(7)
	require.NoError(t, err)

	expiredCodec := NewTokenCodec("secret", time.Hour)
	expiredCodec.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := expiredCodec.Issue(7)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "7",
		ID:        "x",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":        "",
		"bare user id": "7",
		"garbage":      "not.a.token",
		"wrong secret": other,
		"expired":      expired,
		"unsigned":     none,
		"tampered":     good + "x",
	}
	for name, tok := range cases {
		_, err := c.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)
	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
