package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Buckets untouched for bucketIdleTTL are dropped, checked at most once per
// sweepInterval.
const (
	bucketIdleTTL = 10 * time.Minute
	sweepInterval = time.Minute
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	mu        sync.Mutex
	ips       map[string]*bucket
	lastSweep time.Time
	now       func() time.Time

	r          rate.Limit
	b          int
	trustProxy bool
}

// NewIPRateLimiter allows rps requests per second per client IP with the
// given burst. The client IP is the connection's peer address unless
// trustProxy is set, in which case True-Client-IP, X-Real-IP and
// X-Forwarded-For are honoured. Only set it behind a proxy that overwrites
// those headers.
func NewIPRateLimiter(rps float64, burst int, trustProxy bool) *IPRateLimiter {
	return &IPRateLimiter{
		ips:        make(map[string]*bucket),
		now:        time.Now,
		r:          rate.Limit(rps),
		b:          burst,
		trustProxy: trustProxy,
	}
}

func (l *IPRateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep(now)
	}

	bk, ok := l.ips[ip]
	if !ok {
		bk = &bucket{lim: rate.NewLimiter(l.r, l.b)}
		l.ips[ip] = bk
	}
	bk.lastSeen = now
	return bk.lim
}

// sweep must be called with mu held.
func (l *IPRateLimiter) sweep(now time.Time) {
	for ip, bk := range l.ips {
		if now.Sub(bk.lastSeen) >= bucketIdleTTL {
			delete(l.ips, ip)
		}
	}
	l.lastSweep = now
}

// Len reports how many client buckets are held.
func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ips)
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Middleware rejects requests with 429 once the client's bucket is empty. It is
// mounted only on fixed run routes, so the raw path is a bounded label.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	h := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiter(clientIP(r)).Allow() {
			rateLimited.WithLabelValues(r.URL.Path).Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	}))
	if l.trustProxy {
		h = middleware.RealIP(h)
	}
	return h
}
