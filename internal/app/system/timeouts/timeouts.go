// Package timeouts holds the deadlines used with context.WithTimeout by
// handlers, stores and workers.
//
//   - Ping: health checks
//   - Short: single-document reads and writes
//   - Medium: list queries, roster loads
//   - Long: statistics that load a whole group (activities, roster, goals)
//   - Batch: the health snapshot sweep and CLI maintenance commands
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 20 * time.Second
	DefaultBatch  = 2 * time.Minute
)

// EnvPrefix is prepended to PING, SHORT, MEDIUM, LONG and BATCH when
// reading overrides from the environment.
const EnvPrefix = "FLOCKHUB_TIMEOUT_"

var (
	mu  sync.RWMutex
	cur = defaults()
)

func defaults() Config {
	return Config{
		Ping:   DefaultPing,
		Short:  DefaultShort,
		Medium: DefaultMedium,
		Long:   DefaultLong,
		Batch:  DefaultBatch,
	}
}

// Config holds timeout values. Zero values are ignored by Configure.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Batch  time.Duration
}

func get(f func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return f(cur)
}

// Ping is the timeout for connectivity checks.
func Ping() time.Duration { return get(func(c Config) time.Duration { return c.Ping }) }

// Short is the timeout for single-document operations.
func Short() time.Duration { return get(func(c Config) time.Duration { return c.Short }) }

// Medium is the timeout for list queries.
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }

// Long is the timeout for statistics requests that load a whole group.
func Long() time.Duration { return get(func(c Config) time.Duration { return c.Long }) }

// Batch is the timeout for sweeps over every group of every church.
func Batch() time.Duration { return get(func(c Config) time.Duration { return c.Batch }) }

// Configure overrides the non-zero values of cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	set(&cur.Ping, cfg.Ping)
	set(&cur.Short, cfg.Short)
	set(&cur.Medium, cfg.Medium)
	set(&cur.Long, cfg.Long)
	set(&cur.Batch, cfg.Batch)
}

func set(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// Reset restores the defaults. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = defaults()
}

// ConfigureFromEnv reads FLOCKHUB_TIMEOUT_{PING,SHORT,MEDIUM,LONG,BATCH}
// as Go durations ("2s", "500ms", "2m"). Unset, malformed or non-positive
// values are skipped. It returns how many values were applied.
func ConfigureFromEnv() int {
	var cfg Config
	n := 0
	for name, dst := range map[string]*time.Duration{
		"PING":   &cfg.Ping,
		"SHORT":  &cfg.Short,
		"MEDIUM": &cfg.Medium,
		"LONG":   &cfg.Long,
		"BATCH":  &cfg.Batch,
	} {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
			n++
		}
	}
	Configure(cfg)
	return n
}

// Current returns the active configuration, for startup logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// WithTimeout is context.WithTimeout whose cancel func logs a warning when
// the deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "group health")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
