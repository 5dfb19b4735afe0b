package models_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshbulk/storefront/app/models"
)

func TestParseOrderStatus(t *testing.T) {
	for _, s := range []string{"Pending", "In Progress", "Delivered"} {
		st, err := models.ParseOrderStatus(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(st))
	}

	for _, s := range []string{"", "pending", "Shipped", "In progress"} {
		_, err := models.ParseOrderStatus(s)
		assert.Error(t, err, s)
	}
}

func TestOrderTotal(t *testing.T) {
	o := models.Order{Items: []models.OrderItem{
		{Quantity: 10, Price: decimal.RequireFromString("2.50")},
		{Quantity: 3, Price: decimal.RequireFromString("1.10")},
	}}

	assert.True(t, decimal.RequireFromString("28.30").Equal(o.Total()), o.Total().String())
}

func TestOwnedBy(t *testing.T) {
	uid := uint(4)
	assert.True(t, (&models.Order{UserID: &uid}).OwnedBy(4))
	assert.False(t, (&models.Order{UserID: &uid}).OwnedBy(5))
	assert.False(t, (&models.Order{}).OwnedBy(4))
}

func TestProductJSONShape(t *testing.T) {
	p := models.Product{ID: 1, Name: "Carrot", Price: decimal.RequireFromString("2.5")}
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 2.5, got["price"])
	assert.Nil(t, got["description"])
	assert.Nil(t, got["image_url"])
	assert.NotContains(t, got, "DeletedAt")
}

func TestUserHidesPassword(t *testing.T) {
	raw, err := json.Marshal(models.User{ID: 1, Name: "A", Email: "a@x.io", Password: "hash", Role: models.RoleBuyer})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hash")
	assert.JSONEq(t, `{"id":1,"name":"A","email":"a@x.io","role":"buyer"}`, string(raw))
}
