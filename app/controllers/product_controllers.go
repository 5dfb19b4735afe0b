package controllers

import (
	"errors"
	"net/http"

	"github.com/freshbulk/storefront/app/services"
	"github.com/freshbulk/storefront/pkg/apperr"
	"github.com/freshbulk/storefront/pkg/ctx"
)

var errProductNotFound = apperr.NotFound("Product not found")

// multipartOverhead leaves room for form boundaries and headers around the
// image part.
const multipartOverhead = 64 << 10

type ProductController struct {
	catalog *services.CatalogService
}

func NewProductController(catalog *services.CatalogService) *ProductController {
	return &ProductController{catalog: catalog}
}

func (pc *ProductController) Index(c *ctx.Context) {
	products, err := pc.catalog.List(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	c.OK(products)
}

func (pc *ProductController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.Fail(errProductNotFound)
		return
	}
	p, err := pc.catalog.Get(c.Context(), id)
	if err != nil {
		c.Fail(err)
		return
	}
	c.OK(p)
}

func (pc *ProductController) Store(c *ctx.Context) {
	var in services.ProductInput
	if !c.BindJSON(&in) {
		return
	}
	p, err := pc.catalog.Create(c.Context(), caller(c), in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(p)
}

func (pc *ProductController) Update(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.Fail(errProductNotFound)
		return
	}
	var in services.ProductInput
	if !c.BindJSON(&in) {
		return
	}
	p, err := pc.catalog.Update(c.Context(), caller(c), id, in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.OK(p)
}

func (pc *ProductController) Destroy(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.Fail(errProductNotFound)
		return
	}
	if err := pc.catalog.Delete(c.Context(), caller(c), id); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Product deleted successfully")
}

// UploadImage accepts a multipart form with the file in field "image".
func (pc *ProductController) UploadImage(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		c.Fail(errProductNotFound)
		return
	}

	c.R.Body = http.MaxBytesReader(c.W, c.R.Body, services.MaxImageBytes+multipartOverhead)
	file, _, err := c.R.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.Fail(apperr.Validationf("Image must be at most %d MB", services.MaxImageBytes>>20))
			return
		}
		c.Fail(apperr.Validation(`Image file is required in form field "image"`))
		return
	}
	defer file.Close()
	defer c.R.MultipartForm.RemoveAll() //nolint:errcheck

	p, err := pc.catalog.AttachImage(c.Context(), caller(c), id, file)
	if err != nil {
		c.Fail(err)
		return
	}
	c.OK(p)
}
