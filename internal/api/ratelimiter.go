package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the per-client limiter table; it is reset when full.
const maxTrackedClients = 10_000

type rateLimiter interface {
	Allow(client string) bool
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) rateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &clientLimiter{
		limit:   rate.Limit(ratePerSecond),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *clientLimiter) Allow(client string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	limiter, ok := l.clients[client]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.clients = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.clients[client] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// clientKey identifies the caller by its remote address. X-Forwarded-For is
// only consulted when the direct peer is a trusted proxy; hops are then read
// right to left and the first address outside the trusted set is the client.
func clientKey(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isTrusted(host, trusted) {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
	}
	return host
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func rateLimitMiddleware(limiter rateLimiter, trusted []netip.Prefix, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow(clientKey(r, trusted)) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}
