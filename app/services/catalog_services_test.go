package services_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/app/services"
	"github.com/freshbulk/storefront/pkg/apperr"
)

func TestCatalogListSortedAndCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.product(t, "Onion", "1.20")
	f.product(t, "Carrot", "2.50")

	list, err := f.catalog.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Carrot", list[0].Name)
	assert.Equal(t, "Onion", list[1].Name)

	// A write that bypasses the service is invisible until the next
	// mutation through the service clears the cache.
	require.NoError(t, f.db.Create(&models.Product{Name: "Beet", Price: *price("3")}).Error)
	list, _ = f.catalog.List(ctx)
	assert.Len(t, list, 2)

	f.product(t, "Leek", "4")
	list, _ = f.catalog.List(ctx)
	assert.Equal(t, []string{"Beet", "Carrot", "Leek", "Onion"}, names(list))
}

func names(ps []models.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestCatalogCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []services.ProductInput{
		{Price: price("1")},
		{Name: "Carrot"},
		{Name: "Carrot", Price: price("0")},
	} {
		_, err := f.catalog.Create(ctx, f.admin, in)
		assert.Equal(t, "Name and price are required", apperr.From(err).Message)
	}

	for _, raw := range []string{"-2", "0.004", "99999999.999"} {
		_, err := f.catalog.Create(ctx, f.admin, services.ProductInput{Name: "Carrot", Price: price(raw)})
		assert.Equal(t, "Price must be a positive amount below 100000000", apperr.From(err).Message, raw)
	}

	p, err := f.catalog.Create(ctx, f.admin, services.ProductInput{Name: "Carrot", Price: price("0.005")})
	require.NoError(t, err)
	assert.Equal(t, "0.01", p.Price.StringFixed(2))
}

func TestCatalogMutationsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	carrot := f.product(t, "Carrot", "2.50")

	for _, caller := range []*models.User{nil, f.alice} {
		_, err := f.catalog.Create(ctx, caller, services.ProductInput{Name: "X", Price: price("1")})
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		_, err = f.catalog.Update(ctx, caller, carrot.ID, services.ProductInput{Name: "X", Price: price("1")})
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		assert.ErrorIs(t, f.catalog.Delete(ctx, caller, carrot.ID), apperr.ErrUnauthorized)
	}
}

func TestCatalogUpdateReplacesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	desc := "Orange and crunchy"
	carrot, err := f.catalog.Create(ctx, f.admin, services.ProductInput{Name: "Carrot", Price: price("2.50"), Description: &desc})
	require.NoError(t, err)
	require.NotNil(t, carrot.Description)

	updated, err := f.catalog.Update(ctx, f.admin, carrot.ID, services.ProductInput{Name: "Baby carrot", Price: price("3.10")})
	require.NoError(t, err)
	assert.Equal(t, "Baby carrot", updated.Name)
	assert.Equal(t, "3.1", updated.Price.String())
	assert.Nil(t, updated.Description)

	_, err = f.catalog.Update(ctx, f.admin, 999, services.ProductInput{Name: "X", Price: price("1")})
	assert.ErrorIs(t, err, apperr.NotFound("Product not found"))
}

func TestCatalogDeleteArchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	carrot := f.product(t, "Carrot", "2.50")

	require.NoError(t, f.catalog.Delete(ctx, f.admin, carrot.ID))

	_, err := f.catalog.Get(ctx, carrot.ID)
	assert.ErrorIs(t, err, apperr.NotFound("Product not found"))
	list, _ := f.catalog.List(ctx)
	assert.Empty(t, list)
	assert.ErrorIs(t, f.catalog.Delete(ctx, f.admin, carrot.ID), apperr.NotFound("Product not found"))

	var archived int64
	require.NoError(t, f.db.Unscoped().Model(&models.Product{}).Where("id = ?", carrot.ID).Count(&archived).Error)
	assert.EqualValues(t, 1, archived, "row is kept for order history")
}

func TestAttachImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	carrot := f.product(t, "Carrot", "2.50")

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	updated, err := f.catalog.AttachImage(ctx, f.admin, carrot.ID, bytes.NewReader(png))
	require.NoError(t, err)
	require.NotNil(t, updated.ImageURL)
	assert.True(t, strings.HasPrefix(*updated.ImageURL, "/storage/products/"), *updated.ImageURL)
	assert.True(t, strings.HasSuffix(*updated.ImageURL, ".png"))

	key := strings.TrimPrefix(*updated.ImageURL, "/storage/")
	ok, err := f.disk.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.catalog.AttachImage(ctx, f.admin, carrot.ID, strings.NewReader("plain text"))
	assert.Equal(t, "Image must be a JPEG, PNG or WebP file", apperr.From(err).Message)

	big := append(append([]byte{}, png...), bytes.Repeat([]byte{0}, services.MaxImageBytes)...)
	_, err = f.catalog.AttachImage(ctx, f.admin, carrot.ID, bytes.NewReader(big))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.catalog.AttachImage(ctx, f.alice, carrot.ID, bytes.NewReader(png))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.catalog.AttachImage(ctx, f.admin, 999, bytes.NewReader(png))
	assert.ErrorIs(t, err, apperr.NotFound("Product not found"))
}
