// Package ctx gives handlers a single *Context instead of the
// (http.ResponseWriter, *http.Request) pair:
//
//	func (pc *ProductController) Show(c *ctx.Context) {
//	    id, ok := c.ParamUint("id")
//	    ...
//	    c.OK(product)
//	}
//
//	r.Get("/products/{id}", "products.show", ctx.Wrap(pc.Show))
package ctx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/freshbulk/storefront/pkg/bind"
	"github.com/freshbulk/storefront/pkg/logger"
	"github.com/freshbulk/storefront/pkg/response"
)

type HandlerFunc func(c *Context)

// Wrap adapts a HandlerFunc for the router.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// Context must not be retained after the handler returns; it is pooled.
type Context struct {
	W      http.ResponseWriter
	R      *http.Request
	mu     sync.RWMutex
	store  map[string]any
	status int
}

var pool = sync.Pool{
	New: func() any { return &Context{store: make(map[string]any)} },
}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	c.W = w
	c.R = r
	c.status = 0
	clear(c.store)
	return c
}

func release(c *Context) {
	c.W = nil
	c.R = nil
	pool.Put(c)
}

// Param returns a URL path parameter.
func (c *Context) Param(key string) string {
	return chi.URLParam(c.R, key)
}

// ParamUint parses a numeric path parameter such as an id.
func (c *Context) ParamUint(key string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func (c *Context) Query(key string) string {
	return c.R.URL.Query().Get(key)
}

func (c *Context) Header(key string) string {
	return c.R.Header.Get(key)
}

func (c *Context) Cookie(name string) (string, error) {
	cookie, err := c.R.Cookie(name)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// ClientIP prefers X-Forwarded-For, then X-Real-Ip, then the peer address.
func (c *Context) ClientIP() string {
	if fwd := c.R.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	if real := c.R.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	ip := c.R.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func (c *Context) Context() context.Context { return c.R.Context() }

// Logger is the request-scoped logger.
func (c *Context) Logger() *slog.Logger { return logger.WithCtx(c.R.Context()) }

// Set stores a value for the rest of the request.
func (c *Context) Set(key string, val any) {
	c.mu.Lock()
	c.store[key] = val
	c.mu.Unlock()
}

func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	v, ok := c.store[key]
	c.mu.RUnlock()
	return v, ok
}

// BindJSON decodes and validates the body into dest. On failure the 400
// response is already written and false is returned.
//
//	var in createOrderInput
//	if !c.BindJSON(&in) {
//	    return
//	}
func (c *Context) BindJSON(dest any) bool {
	if err := bind.JSON(c.R, dest); err != nil {
		c.Fail(err)
		return false
	}
	return true
}

func (c *Context) SetHeader(key, value string) {
	c.W.Header().Set(key, value)
}

func (c *Context) JSON(code int, v any) {
	c.status = code
	response.JSON(c.W, code, v)
}

func (c *Context) OK(v any)      { c.JSON(http.StatusOK, v) }
func (c *Context) Created(v any) { c.JSON(http.StatusCreated, v) }

// Message sends {"message": msg} with 200.
func (c *Context) Message(msg string) {
	c.status = http.StatusOK
	response.Message(c.W, http.StatusOK, msg)
}

// Error sends {"error": message}.
func (c *Context) Error(code int, message string) {
	c.status = code
	response.Error(c.W, code, message)
}

// Fail renders err through response.Fail.
func (c *Context) Fail(err error) {
	c.status = response.StatusOf(err)
	response.Fail(c.W, c.R, err)
}

// Status writes just the status code.
func (c *Context) Status(code int) {
	c.status = code
	c.W.WriteHeader(code)
}

// WrittenStatus is 0 until a response is written.
func (c *Context) WrittenStatus() int { return c.status }
