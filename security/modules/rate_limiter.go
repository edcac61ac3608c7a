package modules

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"chordring/ring"
	"chordring/security"
	"chordring/wire"
)

// RateLimiter is a per-source-IP token bucket, refilled continuously at a
// configured rate and capped at a configured burst. Ping/Pong bypass the
// limiter entirely so liveness checks never get throttled out from under
// check_predecessor/stabilize.
//
// The refill math mirrors the teacher's TokenBucket (continuous refill by
// elapsed wall-clock time, capped at capacity) rather than a fixed-tick
// bucket.
type RateLimiter struct {
	security.BaseModule

	maxTokens  float64
	refillRate float64 // tokens per second

	mu      sync.Mutex
	buckets map[string]*tokenBucket

	allowed   atomic.Uint64
	throttled atomic.Uint64
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter returns a RateLimiter allowing maxTokens burst, refilled
// at refillRate tokens/second.
func NewRateLimiter(maxTokens int, refillRate float64) *RateLimiter {
	return &RateLimiter{
		maxTokens:  float64(maxTokens),
		refillRate: refillRate,
		buckets:    make(map[string]*tokenBucket),
	}
}

func (m *RateLimiter) AllowMessage(sender ring.NodeAddress, tag wire.Tag) bool {
	if tag == wire.TagPing || tag == wire.TagPong {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	bucket, ok := m.buckets[sender.Host]
	if !ok {
		bucket = &tokenBucket{tokens: m.maxTokens, lastRefill: now}
		m.buckets[sender.Host] = bucket
	}

	elapsed := now.Sub(bucket.lastRefill).Seconds()
	bucket.tokens += elapsed * m.refillRate
	if bucket.tokens > m.maxTokens {
		bucket.tokens = m.maxTokens
	}
	bucket.lastRefill = now

	if bucket.tokens >= 1.0 {
		bucket.tokens -= 1.0
		m.allowed.Add(1)
		return true
	}

	m.throttled.Add(1)
	log.Printf("[rate_limiter] throttled message from %s", sender.Host)
	return false
}

// Tick prunes buckets for sources not seen in the last 60s.
func (m *RateLimiter) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for ip, bucket := range m.buckets {
		if now.Sub(bucket.lastRefill).Seconds() > 60 {
			delete(m.buckets, ip)
		}
	}
}

func (m *RateLimiter) Metrics() security.Metrics {
	m.mu.Lock()
	tracked := len(m.buckets)
	m.mu.Unlock()
	return security.Metrics{
		ModuleName: m.Name(),
		Counters: map[string]uint64{
			"allowed":   m.allowed.Load(),
			"throttled": m.throttled.Load(),
		},
		Gauges: map[string]float64{
			"tracked_ips": float64(tracked),
		},
	}
}

func (m *RateLimiter) ResetMetrics() {
	m.allowed.Store(0)
	m.throttled.Store(0)
	m.mu.Lock()
	m.buckets = make(map[string]*tokenBucket)
	m.mu.Unlock()
}

func (m *RateLimiter) Name() string { return "rate_limiter" }

var _ security.Module = (*RateLimiter)(nil)
