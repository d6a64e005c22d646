package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/ogurasousui/masters-service/internal/adapters/http/respond"
	"golang.org/x/time/rate"
)

const bucketTTL = 5 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter はクライアント IP ごとのトークンバケットです。
type RateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	buckets   map[string]*bucket
	lastSweep time.Time
	trusted   []netip.Prefix
	now       func() time.Time
}

// RateLimiterOption は RateLimiter の設定を変更します。
type RateLimiterOption func(*RateLimiter)

// WithTrustedProxies は X-Forwarded-For を信用する直前のプロキシを設定します。
// 未設定の場合は接続元アドレスのみでクライアントを識別します。
func WithTrustedProxies(prefixes []netip.Prefix) RateLimiterOption {
	return func(l *RateLimiter) { l.trusted = prefixes }
}

// NewRateLimiter は秒間 perSecond 件、最大 burst 件を許可する RateLimiter を生成します。
func NewRateLimiter(perSecond, burst int, opts ...RateLimiterOption) *RateLimiter {
	l := &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit は上限を超えたリクエストを 429 で拒否するミドルウェアです。
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(l.clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			respond.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(key string) bool {
	if key == "" {
		key = "unknown"
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > bucketTTL {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > bucketTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// clientIP は接続元アドレスを返します。接続元が信用済みプロキシの場合に限り
// X-Forwarded-For を右から辿り、最初の信用済みでないアドレスを採用します。
func (l *RateLimiter) clientIP(r *http.Request) string {
	remote := remoteHost(r.RemoteAddr)
	if !l.isTrusted(remote) {
		return remote
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			break
		}
		if !l.isTrusted(hop) {
			return hop
		}
	}
	return remote
}

func (l *RateLimiter) isTrusted(host string) bool {
	if len(l.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
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

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
