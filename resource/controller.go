package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned by AcquireMemory when the request can
// never fit in the configured budget.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// DefaultMaxConcurrentFetch is the number of fetch slots when none is configured.
const DefaultMaxConcurrentFetch = 4

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for cached bytes.
	// If 0, usage is only tracked.
	MemoryLimitBytes int64

	// MaxConcurrentFetch bounds the chunk loads in flight at once.
	// If 0, DefaultMaxConcurrentFetch is used.
	MaxConcurrentFetch int64

	// IOLimitBytesPerSec throttles backend reads and writes.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller enforces a Config.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	fetchSem *semaphore.Weighted

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentFetch <= 0 {
		cfg.MaxConcurrentFetch = DefaultMaxConcurrentFetch
	}

	c := &Controller{
		cfg:      cfg,
		fetchSem: semaphore.NewWeighted(cfg.MaxConcurrentFetch),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireMemory reserves bytes, blocking until they are available or ctx
// is done.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if bytes > c.cfg.MemoryLimitBytes {
			return ErrMemoryLimitExceeded
		}
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory reserves bytes without blocking.
// Returns false if the limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory returns reserved bytes.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// MaxConcurrentFetch returns the number of fetch slots.
func (c *Controller) MaxConcurrentFetch() int {
	if c == nil {
		return DefaultMaxConcurrentFetch
	}
	return int(c.cfg.MaxConcurrentFetch)
}

// AcquireFetch takes a fetch slot, blocking while all are busy.
func (c *Controller) AcquireFetch(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.fetchSem.Acquire(ctx, 1)
}

// TryAcquireFetch takes a fetch slot without blocking.
func (c *Controller) TryAcquireFetch() bool {
	if c == nil {
		return true
	}
	return c.fetchSem.TryAcquire(1)
}

// ReleaseFetch returns a fetch slot.
func (c *Controller) ReleaseFetch() {
	if c == nil {
		return
	}
	c.fetchSem.Release(1)
}

// AcquireIO waits until the IO limit allows n bytes. Requests larger than
// the burst are split.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// TryAcquireIO takes IO tokens without blocking.
func (c *Controller) TryAcquireIO(n int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), n)
}
