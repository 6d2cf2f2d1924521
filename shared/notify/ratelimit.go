package notify

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// RateLimiterConfig tunes the outbound message rate.
type RateLimiterConfig struct {
	// Rate is tokens added per second.
	Rate float64
	// Burst is the bucket capacity.
	Burst int
	// JitterMin/JitterMax bound the random delay, in milliseconds,
	// added before each send so bursts do not hit the channel as one
	// spike.
	JitterMin int
	JitterMax int
}

// DefaultRateLimiterConfig returns limits safe for the Telegram bot API.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:      1.0,
		Burst:     5,
		JitterMin: 50,
		JitterMax: 150,
	}
}

// RateLimiter is a token bucket with pre-send jitter.
type RateLimiter struct {
	config   RateLimiterConfig
	tokens   float64
	lastTime time.Time
	mu       sync.Mutex
	rng      *rand.Rand
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		config:   config,
		tokens:   float64(config.Burst),
		lastTime: time.Now(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if jitter := r.jitter(); jitter > 0 {
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	r.refill()
	if r.tokens >= 1 {
		r.tokens--
		r.mu.Unlock()
		return nil
	}
	waitTime := time.Duration((1 - r.tokens) / r.config.Rate * float64(time.Second))
	r.mu.Unlock()

	select {
	case <-time.After(waitTime):
		r.mu.Lock()
		r.tokens = 0
		r.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a token without blocking.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// refill must be called with the mutex held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastTime).Seconds()
	r.tokens = math.Min(float64(r.config.Burst), r.tokens+elapsed*r.config.Rate)
	r.lastTime = now
}

func (r *RateLimiter) jitter() time.Duration {
	if r.config.JitterMax <= r.config.JitterMin {
		return time.Duration(r.config.JitterMin) * time.Millisecond
	}
	r.mu.Lock()
	ms := r.config.JitterMin + r.rng.Intn(r.config.JitterMax-r.config.JitterMin)
	r.mu.Unlock()
	return time.Duration(ms) * time.Millisecond
}
