package gridstore

import (
	"log/slog"

	"github.com/hupe1980/gridstore/internal/cache"
	"github.com/hupe1980/gridstore/resource"
)

// DefaultPrefetchLimit is the largest element count PrefetchSmall loads.
const DefaultPrefetchLimit = 1000

type options struct {
	cache            cache.Config
	prefetchLimit    int64
	prefetchOnOpen   bool
	nameIndexHint    int
	metricsCollector MetricsCollector
	logger           *Logger
	rc               *resource.Controller
}

// Option configures Open.
type Option func(*options)

// WithCacheLimit sets the aggregate byte budget of the chunk cache.
// If bytes <= 0, only the node count bounds the cache.
func WithCacheLimit(bytes int64) Option {
	return func(o *options) {
		o.cache.MaxBytes = bytes
	}
}

// WithCacheCount sets the maximum number of cached fragments.
// If n <= 0, fetch results are never cached; the prefetch slot still works.
func WithCacheCount(n int) Option {
	return func(o *options) {
		o.cache.MaxNodes = n
	}
}

// WithMinCacheBytes sets the size below which fetch results are not
// cached. Tiny fragments are cheap to fetch again and would crowd out the
// node budget.
func WithMinCacheBytes(n int64) Option {
	return func(o *options) {
		o.cache.MinBytes = n
	}
}

// WithPrefetchLimit sets the largest element count of a variable that
// PrefetchSmall loads.
func WithPrefetchLimit(elements int64) Option {
	return func(o *options) {
		o.prefetchLimit = elements
	}
}

// WithPrefetchOnOpen runs PrefetchSmall as part of Open.
func WithPrefetchOnOpen() Option {
	return func(o *options) {
		o.prefetchOnOpen = true
	}
}

// WithNameIndexHint sizes the dimension and variable name indexes for the
// expected number of names.
func WithNameIndexHint(n int) Option {
	return func(o *options) {
		o.nameIndexHint = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &gridstore.BasicMetricsCollector{}
//	ds, _ := gridstore.Open(ctx, "climate", backend, gridstore.WithMetricsCollector(metrics))
//	// ... use ds ...
//	stats := metrics.GetStats()
//	fmt.Printf("Reads: %d, hits: %d\n", stats.ReadCount, stats.ReadHits)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := gridstore.NewJSONLogger(slog.LevelInfo)
//	ds, _ := gridstore.Open(ctx, "climate", backend, gridstore.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController charges cached bytes to rc. Datasets sharing a
// controller share its memory limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithConfig applies every setting of cfg. Later options override it.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		for _, fn := range cfg.Options() {
			fn(o)
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		cache:            cache.DefaultConfig(),
		prefetchLimit:    DefaultPrefetchLimit,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
