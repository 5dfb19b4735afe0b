package ctx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/freshbulk/storefront/pkg/apperr"
	appctx "github.com/freshbulk/storefront/pkg/ctx"
)

func serve(req *http.Request, h appctx.HandlerFunc) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	appctx.Wrap(h)(rec, req)
	return rec
}

func withParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestOKWritesRawBody(t *testing.T) {
	rec := serve(httptest.NewRequest(http.MethodGet, "/", nil), func(c *appctx.Context) {
		c.OK(map[string]any{"id": 1})
		assert.Equal(t, http.StatusOK, c.WrittenStatus())
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1}`, rec.Body.String())
}

func TestParamUint(t *testing.T) {
	for raw, want := range map[string]bool{"42": true, "0": false, "abc": false, "-1": false} {
		req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", raw)
		serve(req, func(c *appctx.Context) {
			_, ok := c.ParamUint("id")
			assert.Equal(t, want, ok, raw)
		})
	}
}

func TestSetAndGet(t *testing.T) {
	serve(httptest.NewRequest(http.MethodGet, "/", nil), func(c *appctx.Context) {
		c.Set("user_id", uint(7))
		v, ok := c.Get("user_id")
		assert.True(t, ok)
		assert.Equal(t, uint(7), v)

		_, ok = c.Get("missing")
		assert.False(t, ok)
	})
}

func TestBindJSON(t *testing.T) {
	type input struct {
		Name string `json:"name" validate:"required"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Okra"}`))
	serve(req, func(c *appctx.Context) {
		var in input
		assert.True(t, c.BindJSON(&in))
		assert.Equal(t, "Okra", in.Name)
	})

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	rec := serve(req, func(c *appctx.Context) {
		assert.False(t, c.BindJSON(&input{}))
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Validation failed","fields":{"name":"The name field is required."}}`, rec.Body.String())
}

func TestFail(t *testing.T) {
	rec := serve(httptest.NewRequest(http.MethodGet, "/", nil), func(c *appctx.Context) {
		c.Fail(apperr.NotFound("Order not found"))
		assert.Equal(t, http.StatusNotFound, c.WrittenStatus())
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Order not found"}`, rec.Body.String())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	serve(req, func(c *appctx.Context) {
		assert.Equal(t, "203.0.113.9", c.ClientIP())
	})

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	serve(req, func(c *appctx.Context) {
		assert.Equal(t, "198.51.100.4", c.ClientIP())
	})
}
