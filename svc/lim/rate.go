package lim

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Hemasri-01/pastebin/svc/db"
	"github.com/Hemasri-01/pastebin/svc/util"
)

const (
	maxLimiters     = 10000
	cleanupInterval = 5 * time.Minute
	limiterTTL      = 30 * time.Minute
	redisWindow     = time.Minute
)

// Limiter combines per-IP token buckets with an optional Redis-backed
// fixed window so limits hold across restarts when Redis is configured.
type Limiter struct {
	rdb            *db.Redis
	trustedProxies []string
	localLimiters  map[string]*limiterEntry
	mu             sync.Mutex
	burstLimit     int
	globalRPM      int
	quit           chan struct{}
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

func New(globalRPM, perIPBurst int, rdb *db.Redis, trustedProxies []string) *Limiter {
	for _, proxy := range trustedProxies {
		if strings.Contains(proxy, "/") {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				panic(fmt.Sprintf("invalid CIDR in trustedProxies: %s: %v", proxy, err))
			}
		} else {
			if net.ParseIP(proxy) == nil {
				panic(fmt.Sprintf("invalid IP in trustedProxies: %s", proxy))
			}
		}
	}
	l := &Limiter{
		rdb:            rdb,
		trustedProxies: trustedProxies,
		localLimiters:  make(map[string]*limiterEntry),
		burstLimit:     perIPBurst,
		globalRPM:      globalRPM,
		quit:           make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictStale()
		case <-l.quit:
			return
		}
	}
}

func (l *Limiter) evictStale() {
	cutoff := time.Now().Add(-limiterTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.localLimiters {
		if entry.lastAccess.Before(cutoff) {
			delete(l.localLimiters, key)
		}
	}
}

func (l *Limiter) localLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.localLimiters[key]
	if !ok {
		if len(l.localLimiters) >= maxLimiters {
			// Full table: reuse the zero-value path rather than grow
			// without bound under an address-spread flood.
			for k := range l.localLimiters {
				delete(l.localLimiters, k)
				break
			}
		}
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(l.globalRPM)/60.0), l.burstLimit),
		}
		l.localLimiters[key] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter
}

// CheckLimit enforces the per-IP budget for an endpoint class. The Redis
// window is consulted first when available; the local token bucket
// always applies.
func (l *Limiter) CheckLimit(r *http.Request, endpoint string) RateLimitResult {
	ip := GetRealIP(r, l.trustedProxies)
	key := endpoint + ":" + ip
	result := RateLimitResult{
		Allowed: true,
		Limit:   l.globalRPM,
		Reset:   time.Now().Add(redisWindow),
	}
	if l.rdb != nil {
		usage, err := l.rdb.RateLimit(r.Context(), "rl:"+key, l.globalRPM, redisWindow)
		if err != nil {
			util.Warn().Err(err).Str("endpoint", endpoint).Msg("redis rate limit unavailable, using local bucket")
		} else {
			result.Remaining = l.globalRPM - usage
			if result.Remaining < 0 {
				result.Remaining = 0
			}
			if usage > l.globalRPM {
				result.Allowed = false
				return result
			}
		}
	}
	if !l.localLimiter(key).Allow() {
		result.Allowed = false
		result.Remaining = 0
	}
	return result
}

func (l *Limiter) Stop() {
	close(l.quit)
}

// GetRealIP trusts forwarding headers only when the peer is a trusted
// proxy, otherwise the socket address wins.
func GetRealIP(r *http.Request, trustedProxies []string) string {
	remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteIP = r.RemoteAddr
	}
	if !isTrustedProxy(remoteIP, trustedProxies) {
		return remoteIP
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		candidate := strings.TrimSpace(parts[0])
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		if net.ParseIP(xrip) != nil {
			return xrip
		}
	}
	return remoteIP
}

func isTrustedProxy(ip string, trustedProxies []string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, proxy := range trustedProxies {
		if strings.Contains(proxy, "/") {
			if _, cidr, err := net.ParseCIDR(proxy); err == nil && cidr.Contains(parsed) {
				return true
			}
		} else if proxy == ip {
			return true
		}
	}
	return false
}
