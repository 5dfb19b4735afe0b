// Package router wraps chi with named routes, prefix groups and a route
// table for the route:list command.
package router

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

type Middleware func(http.Handler) http.Handler

// RouteInfo describes one registered route.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

type Router struct {
	mux    chi.Router
	mu     sync.RWMutex
	named  map[string]string
	routes []RouteInfo
}

type Group struct {
	router      *Router
	prefix      string
	middlewares []Middleware
}

func New() *Router {
	return &Router{
		mux:   chi.NewRouter(),
		named: make(map[string]string),
	}
}

func (r *Router) Handler() http.Handler {
	return r.mux
}

// Use appends global middleware. It must be called before any route is
// registered.
func (r *Router) Use(middlewares ...Middleware) {
	for _, mw := range middlewares {
		r.mux.Use(mw)
	}
}

// NotFound and MethodNotAllowed replace chi's plain-text defaults.
func (r *Router) NotFound(h http.HandlerFunc)         { r.mux.NotFound(h) }
func (r *Router) MethodNotAllowed(h http.HandlerFunc) { r.mux.MethodNotAllowed(h) }

func (r *Router) Group(prefix string, middlewares ...Middleware) *Group {
	return &Group{
		router:      r,
		prefix:      normalizePath(prefix),
		middlewares: append([]Middleware(nil), middlewares...),
	}
}

func (r *Router) Get(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.register(http.MethodGet, normalizePath(path), name, h, mws)
}

func (r *Router) Post(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.register(http.MethodPost, normalizePath(path), name, h, mws)
}

func (r *Router) Put(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.register(http.MethodPut, normalizePath(path), name, h, mws)
}

func (r *Router) Delete(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.register(http.MethodDelete, normalizePath(path), name, h, mws)
}

// Mount serves h for every path under prefix, e.g. a static file server.
func (r *Router) Mount(prefix, name string, h http.Handler) {
	p := normalizePath(prefix)
	r.mux.Mount(p, h)
	r.record("*", p+"/*", name)
}

// Path returns the pattern registered under name.
func (r *Router) Path(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	path, ok := r.named[name]
	return path, ok
}

// URL fills the {params} of a named route.
func (r *Router) URL(name string, params map[string]string) (string, error) {
	path, ok := r.Path(name)
	if !ok {
		return "", fmt.Errorf("route %q not found", name)
	}

	for key, value := range params {
		path = strings.ReplaceAll(path, "{"+key+"}", value)
	}

	if strings.Contains(path, "{") {
		return "", fmt.Errorf("missing parameters for route %q", name)
	}

	return path, nil
}

// Routes returns every registered route in registration order.
func (r *Router) Routes() []RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RouteInfo(nil), r.routes...)
}

func (r *Router) register(method, fullPath, name string, h http.Handler, mws []Middleware) {
	r.mux.Method(method, fullPath, chain(h, mws...))
	r.record(method, fullPath, name)
}

func (r *Router) record(method, fullPath, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, RouteInfo{Method: method, Path: fullPath, Name: name})
	if name != "" {
		r.named[name] = fullPath
	}
}

func (g *Group) Group(prefix string, middlewares ...Middleware) *Group {
	return &Group{
		router:      g.router,
		prefix:      joinPath(g.prefix, prefix),
		middlewares: append(append([]Middleware(nil), g.middlewares...), middlewares...),
	}
}

func (g *Group) Get(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.mount(http.MethodGet, path, name, h, mws)
}

func (g *Group) Post(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.mount(http.MethodPost, path, name, h, mws)
}

func (g *Group) Put(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.mount(http.MethodPut, path, name, h, mws)
}

func (g *Group) Delete(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.mount(http.MethodDelete, path, name, h, mws)
}

func (g *Group) mount(method, path, name string, h http.HandlerFunc, mws []Middleware) {
	combined := append(append([]Middleware(nil), g.middlewares...), mws...)
	g.router.register(method, joinPath(g.prefix, path), name, h, combined)
}

func chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	wrapped := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func joinPath(parts ...string) string {
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.Trim(part, "/"); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}

	if len(segments) == 0 {
		return "/"
	}

	return "/" + strings.Join(segments, "/")
}

func normalizePath(path string) string {
	return joinPath(path)
}
