// Package rbac maps roles to named capabilities. Callers ask "may this role
// do X?" instead of comparing role strings, so a new role only needs a new
// grant line.
package rbac

import (
	"net/http"
	"sync"
)

// Capability names something a caller may be allowed to do.
type Capability string

// Policy is a role → capabilities grant table. The zero value grants nothing.
type Policy struct {
	mu     sync.RWMutex
	grants map[string]map[Capability]struct{}
}

func New() *Policy {
	return &Policy{grants: make(map[string]map[Capability]struct{})}
}

// Grant gives role every capability in caps.
func (p *Policy) Grant(role string, caps ...Capability) *Policy {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.grants == nil {
		p.grants = make(map[string]map[Capability]struct{})
	}
	set, ok := p.grants[role]
	if !ok {
		set = make(map[Capability]struct{})
		p.grants[role] = set
	}
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return p
}

// Allows reports whether role holds c.
func (p *Policy) Allows(role string, c Capability) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.grants[role][c]
	return ok
}

// Require returns middleware that lets a request through only when roleOf
// finds a role holding c. Everything else is answered by deny.
func (p *Policy) Require(c Capability, roleOf func(*http.Request) (string, bool), deny http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := roleOf(r)
			if !ok || !p.Allows(role, c) {
				deny(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
