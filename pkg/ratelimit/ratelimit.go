// Package ratelimit provides per-client token bucket rate limiting for the
// HTTP surface. Buckets are keyed by (remote address, route class) and live
// in process; multi-replica deployments get per-replica limits.
package ratelimit

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/config"
	"github.com/peopleops/hrms-backend/pkg/httputil"
)

// Class identifies a group of routes sharing a bucket profile.
type Class string

const (
	ClassLogin    Class = "login"
	ClassRegister Class = "register"
	ClassAuth     Class = "auth"
	ClassGeneral  Class = "general"
)

const (
	shardCount = 32
	limiterTTL = 10 * time.Minute
)

type profile struct {
	limit  rate.Limit
	burst  int
	window time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Limiter manages lock-striped token buckets per (ip, class).
type Limiter struct {
	shards   [shardCount]*shard
	profiles map[Class]profile
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a Limiter from the configured per-class rates.
func New(cfg *config.RateLimitConfig) *Limiter {
	l := &Limiter{
		profiles: map[Class]profile{
			ClassLogin:    newProfile(cfg.LoginPerMinute, time.Minute),
			ClassRegister: newProfile(cfg.RegisterPerFiveMin, 5*time.Minute),
			ClassAuth:     newProfile(cfg.AuthPerMinute, time.Minute),
			ClassGeneral:  newProfile(cfg.GeneralPerMinute, time.Minute),
		},
		stopCh: make(chan struct{}),
	}
	for i := range l.shards {
		l.shards[i] = &shard{entries: make(map[string]*entry)}
	}

	go l.cleanup()

	return l
}

func newProfile(n int, window time.Duration) profile {
	if n <= 0 {
		n = 1
	}
	return profile{
		limit:  rate.Limit(float64(n) / window.Seconds()),
		burst:  n,
		window: window,
	}
}

// Allow reports whether a request from ip for the given class may proceed,
// and when not, the Retry-After hint in seconds.
func (l *Limiter) Allow(ip string, class Class) (bool, int) {
	p, ok := l.profiles[class]
	if !ok {
		p = l.profiles[ClassGeneral]
	}

	key := ip + "|" + string(class)
	s := l.shards[shardFor(key)]

	s.mu.Lock()
	e, exists := s.entries[key]
	if !exists {
		e = &entry{limiter: rate.NewLimiter(p.limit, p.burst)}
		s.entries[key] = e
	}
	e.lastSeen = time.Now()
	allowed := e.limiter.Allow()
	s.mu.Unlock()

	if allowed {
		return true, 0
	}
	return false, int(p.window.Seconds())
}

// Middleware gates a route subtree with the given class.
func (l *Limiter) Middleware(class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := httputil.RemoteIP(r)
			allowed, retryAfter := l.Allow(ip, class)
			if !allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				httputil.Error(w, apperr.RateLimited(
					fmt.Sprintf("too many requests, retry after %d seconds", retryAfter)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Stop terminates the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func shardFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}

// cleanup evicts idle buckets so the table does not grow without bound.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(limiterTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			for _, s := range l.shards {
				s.mu.Lock()
				for key, e := range s.entries {
					if now.Sub(e.lastSeen) > limiterTTL {
						delete(s.entries, key)
					}
				}
				s.mu.Unlock()
			}
		case <-l.stopCh:
			return
		}
	}
}
