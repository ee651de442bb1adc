package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// KeyFunc picks the bucket a request is counted against. An empty key is
// never limited.
type KeyFunc func(r *http.Request) string

// RateLimiter is a fixed-window limiter keyed by client IP or by webhook
// sender. Expired entries are cleaned up periodically.
type RateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	rate        int           // max requests per window
	window      time.Duration // time window
	key         KeyFunc
	now         func() time.Time
	stopCleanup chan struct{}
}

type visitor struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a limiter that allows rate requests per window per
// key. A nil key counts by client IP.
func NewRateLimiter(rate int, window time.Duration, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ClientIP(nil)
	}
	rl := &RateLimiter{
		visitors:    make(map[string]*visitor),
		rate:        rate,
		window:      window,
		key:         key,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Stop terminates the background cleanup goroutine. Call on server shutdown.
func (rl *RateLimiter) Stop() {
	close(rl.stopCleanup)
}

// Limit wraps a handler and rejects requests that exceed the rate limit.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if k := rl.key(r); k != "" && !rl.allow(k) {
			w.Header().Set("Retry-After", retryAfter(rl.window))
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfter(window time.Duration) string {
	secs := int(window.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// allow checks whether key is within the rate limit and records the attempt.
func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[key]
	if !exists || now.Sub(v.windowStart) > rl.window {
		rl.visitors[key] = &visitor{count: 1, windowStart: now}
		return true
	}

	v.count++
	return v.count <= rl.rate
}

// cleanup removes expired visitor entries periodically.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopCleanup:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for k, v := range rl.visitors {
				if now.Sub(v.windowStart) > rl.window*2 {
					delete(rl.visitors, k)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// WebhookSender keys Twilio webhooks by the sender address, so one noisy
// WhatsApp user cannot starve the others.
func WebhookSender(r *http.Request) string {
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return r.PostForm.Get("From")
}

// ClientIP keys requests by client address. X-Forwarded-For is only trusted
// when the direct peer is in one of the trusted CIDRs.
func ClientIP(trustedProxies []string) KeyFunc {
	var nets []*net.IPNet
	for _, cidr := range trustedProxies {
		if !strings.Contains(cidr, "/") {
			if strings.Contains(cidr, ":") {
				cidr += "/128"
			} else {
				cidr += "/32"
			}
		}
		if _, n, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, n)
		}
	}
	trusted := func(s string) bool {
		ip := net.ParseIP(strings.TrimSpace(s))
		if ip == nil {
			return false
		}
		for _, n := range nets {
			if n.Contains(ip) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		remote, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			remote = r.RemoteAddr
		}
		if len(nets) == 0 || !trusted(remote) {
			return remote
		}
		// Rightmost entry that is not a trusted proxy is the real client.
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				if c := strings.TrimSpace(parts[i]); c != "" && !trusted(c) {
					return c
				}
			}
		}
		return remote
	}
}
