// Package router is a thin method-aware layer over http.ServeMux with
// per-group middleware chains.
package router

import (
	"net/http"
	"slices"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Router registers routes on a shared ServeMux. Chains are applied per
// route, after the mux has matched, so r.Pattern is set for every
// middleware (the metrics labels rely on it).
type Router struct {
	mux    *http.ServeMux
	chain  []Middleware
	routes *[]string
}

// New creates a Router whose routes all run through middleware, outermost
// first.
func New(middleware ...Middleware) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		chain:  middleware,
		routes: new([]string),
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Get registers a GET route.
func (r *Router) Get(pattern string, h http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodGet, pattern, h, middleware...)
}

// Post registers a POST route.
func (r *Router) Post(pattern string, h http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPost, pattern, h, middleware...)
}

// Match registers one handler under several methods, e.g. a processor
// redirect that may arrive as GET or POST.
func (r *Router) Match(methods []string, pattern string, h http.HandlerFunc, middleware ...Middleware) {
	for _, m := range methods {
		r.Handle(m, pattern, h, middleware...)
	}
}

// Handle registers h for method and pattern. Conflicting patterns panic,
// as with http.ServeMux.
func (r *Router) Handle(method, pattern string, h http.Handler, middleware ...Middleware) {
	route := method + " " + pattern
	r.mux.Handle(route, r.wrap(h, middleware))
	*r.routes = append(*r.routes, route)
}

// Group returns a Router sharing the mux whose routes additionally run
// through middleware.
func (r *Router) Group(middleware ...Middleware) *Router {
	return &Router{
		mux:    r.mux,
		chain:  append(slices.Clone(r.chain), middleware...),
		routes: r.routes,
	}
}

// Routes lists every registered "METHOD pattern" in registration order,
// across all groups.
func (r *Router) Routes() []string {
	return slices.Clone(*r.routes)
}

func (r *Router) wrap(h http.Handler, middleware []Middleware) http.Handler {
	chain := append(slices.Clone(r.chain), middleware...)
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}
