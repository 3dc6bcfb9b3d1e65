// Package ratelimit throttles data connection transfers to a fixed number
// of bytes per second.
package ratelimit

import (
	"io"
	"sync"
	"time"
)

// burstWindow is how far ahead of the steady rate a transfer may run,
// so a fresh limiter lets one second worth of data through at once.
const burstWindow = time.Second

// maxChunk bounds the bytes reserved by one Read, keeping waits short.
const maxChunk = 8 * 1024

// Limiter schedules byte reservations at a fixed rate. Each reservation
// of n bytes moves the limiter's clock forward by n/rate; a caller waits
// while that clock is more than burstWindow ahead of now.
//
// A nil *Limiter never waits. A Limiter is safe for concurrent use.
type Limiter struct {
	mu    sync.Mutex
	rate  int64     // bytes per second
	clock time.Time // when every reserved byte will have been paid for

	now   func() time.Time
	sleep func(time.Duration)
}

// New returns a Limiter for bytesPerSecond, or nil when bytesPerSecond is
// not positive.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &Limiter{
		rate:  bytesPerSecond,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Rate returns the configured bytes per second, or 0 for a nil Limiter.
func (l *Limiter) Rate() int64 {
	if l == nil {
		return 0
	}
	return l.rate
}

// reserve books n bytes and returns how long the caller must wait before
// moving them.
func (l *Limiter) reserve(n int) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.clock.Before(now) {
		l.clock = now
	}
	l.clock = l.clock.Add(time.Duration(int64(n) * int64(time.Second) / l.rate))
	if wait := l.clock.Sub(now) - burstWindow; wait > 0 {
		return wait
	}
	return 0
}

// Wait blocks until n more bytes may be moved.
func (l *Limiter) Wait(n int) {
	if l == nil || n <= 0 {
		return
	}
	if d := l.reserve(n); d > 0 {
		l.sleep(d)
	}
}

type reader struct {
	r       io.Reader
	limiter *Limiter
}

// NewReader returns r throttled by limiter. With a nil limiter r is
// returned unchanged.
func NewReader(r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{r: r, limiter: limiter}
}

// Read pays for the bytes it actually read, so a short read at the end of
// a stream does not delay the next transfer.
func (r *reader) Read(p []byte) (int, error) {
	if len(p) > maxChunk {
		p = p[:maxChunk]
	}
	n, err := r.r.Read(p)
	r.limiter.Wait(n)
	return n, err
}
