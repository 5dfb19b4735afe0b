package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/freshbulk/storefront/pkg/response"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window counter per client IP.
type RateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	// X-Forwarded-For is only read when the peer is one of these.
	trusted []netip.Prefix

	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     max,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// TrustProxies lists the proxies, as addresses or CIDR ranges, whose
// X-Forwarded-For header is believed. Without any the peer address is used.
func (l *RateLimiter) TrustProxies(entries ...string) error {
	for _, e := range entries {
		if !strings.Contains(e, "/") {
			addr, err := netip.ParseAddr(e)
			if err != nil {
				return fmt.Errorf("middleware: trusted proxy %q: %w", e, err)
			}
			l.trusted = append(l.trusted, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(e)
		if err != nil {
			return fmt.Errorf("middleware: trusted proxy %q: %w", e, err)
		}
		l.trusted = append(l.trusted, prefix.Masked())
	}
	return nil
}

func (l *RateLimiter) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Allow records one request for key.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &bucket{resetAt: now.Add(l.window)}
		l.buckets[key] = b
	}
	b.count++
	return b.count <= l.max
}

// Sweep evicts expired buckets every window until ctx is done.
func (l *RateLimiter) Sweep(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict()
		}
	}
}

func (l *RateLimiter) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, key)
		}
	}
}

// Middleware answers 429 once a client exceeds the limit. A non-positive
// max disables limiting.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l.max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			response.Error(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP walks X-Forwarded-For from the right while the hop is a trusted
// proxy; the first untrusted hop is the client.
func (l *RateLimiter) clientIP(r *http.Request) string {
	ip := peerIP(r.RemoteAddr)
	if !l.isTrusted(ip) {
		return ip
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		ip = hop
		if !l.isTrusted(hop) {
			break
		}
	}
	return ip
}

func peerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
