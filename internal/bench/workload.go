// Package bench runs synthetic read/write workloads against a cache and
// summarizes throughput, hit ratio and latency.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/discochess/tiercache"
)

// Cache is the subset of the cache API a workload drives.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, opts ...tiercache.SetOption)
}

// Compile-time check that the cache satisfies Cache.
var _ Cache = (*tiercache.Cache[string])(nil)

// maxSamplesPerWorker bounds the latency samples each worker keeps.
const maxSamplesPerWorker = 100_000

// Config describes a workload.
type Config struct {
	// Workers is the number of concurrent goroutines. Default is 1.
	Workers int

	// Ops is the number of operations each worker performs. When zero,
	// workers run until Duration elapses.
	Ops int

	// Duration bounds the run when Ops is zero.
	Duration time.Duration

	// ReadPct is the percentage of reads in [0, 100].
	ReadPct int

	// Keys is the size of the keyspace.
	Keys int

	// ZipfS and ZipfV shape the key distribution. ZipfS must be > 1.
	ZipfS float64
	ZipfV float64

	// Preload is the number of keys written before the run starts.
	Preload int

	Seed int64
}

// DefaultConfig returns a read-heavy workload over 10k skewed keys.
func DefaultConfig() Config {
	return Config{
		Workers:  4,
		Duration: 5 * time.Second,
		ReadPct:  80,
		Keys:     10_000,
		ZipfS:    1.1,
		ZipfV:    1.0,
		Preload:  5_000,
		Seed:     1,
	}
}

// Validate checks that c describes a runnable workload.
func (c Config) Validate() error {
	switch {
	case c.Workers < 0:
		return errors.New("bench: workers must not be negative")
	case c.Ops < 0:
		return errors.New("bench: ops must not be negative")
	case c.Ops == 0 && c.Duration <= 0:
		return errors.New("bench: either ops or duration must be set")
	case c.ReadPct < 0 || c.ReadPct > 100:
		return fmt.Errorf("bench: read percentage %d out of range", c.ReadPct)
	case c.Keys < 1:
		return errors.New("bench: keyspace must not be empty")
	case c.ZipfS <= 1 || c.ZipfV < 1:
		return fmt.Errorf("bench: invalid zipf parameters s=%v v=%v", c.ZipfS, c.ZipfV)
	}
	return nil
}

// Result holds the outcome of a workload run.
type Result struct {
	Ops     int64
	Reads   int64
	Writes  int64
	Hits    int64
	Misses  int64
	Elapsed time.Duration

	// Latency summarizes sampled operation latencies in microseconds.
	Latency Summary
}

// Throughput returns operations per second.
func (r *Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Elapsed.Seconds()
}

// HitRatio returns hits / reads, or 0 when nothing was read.
func (r *Result) HitRatio() float64 {
	if r.Reads == 0 {
		return 0
	}
	return float64(r.Hits) / float64(r.Reads)
}

// Key returns the key for index i.
func Key(i uint64) string {
	return "k:" + strconv.FormatUint(i, 10)
}

// Run executes the workload described by cfg against c.
func Run(ctx context.Context, c Cache, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = 1
	}

	for i := 0; i < cfg.Preload && i < cfg.Keys; i++ {
		c.Set(ctx, Key(uint64(i)), "v"+strconv.Itoa(i))
	}

	if cfg.Ops == 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	var reads, writes, hits, misses atomic.Int64
	samples := make([][]float64, workers)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			// rand.Rand is not safe for concurrent use.
			r := rand.New(rand.NewSource(cfg.Seed + int64(w)*9973))
			zipf := rand.NewZipf(r, cfg.ZipfS, cfg.ZipfV, uint64(cfg.Keys-1))

			for i := 0; cfg.Ops == 0 || i < cfg.Ops; i++ {
				if ctx.Err() != nil {
					break
				}
				key := Key(zipf.Uint64())
				opStart := time.Now()
				if int(r.Int31n(100)) < cfg.ReadPct {
					reads.Add(1)
					if _, ok := c.Get(ctx, key); ok {
						hits.Add(1)
					} else {
						misses.Add(1)
					}
				} else {
					writes.Add(1)
					c.Set(ctx, key, "v"+strconv.Itoa(r.Int()))
				}
				if len(samples[w]) < maxSamplesPerWorker {
					samples[w] = append(samples[w], float64(time.Since(opStart).Nanoseconds())/1e3)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	var all []float64
	for _, s := range samples {
		all = append(all, s...)
	}

	res := &Result{
		Reads:   reads.Load(),
		Writes:  writes.Load(),
		Hits:    hits.Load(),
		Misses:  misses.Load(),
		Elapsed: elapsed,
		Latency: Describe(all),
	}
	res.Ops = res.Reads + res.Writes
	return res, nil
}

// Report writes a human-readable summary of r to w.
func Report(w io.Writer, cfg Config, r *Result) {
	fmt.Fprintf(w, "workers=%d keys=%d reads=%d%% preload=%d elapsed=%v\n",
		max(cfg.Workers, 1), cfg.Keys, cfg.ReadPct, cfg.Preload, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		r.Ops, r.Throughput(), r.Reads, r.Writes)
	fmt.Fprintf(w, "hits=%d  misses=%d  hit-ratio=%.2f%%\n",
		r.Hits, r.Misses, r.HitRatio()*100)
	fmt.Fprintf(w, "latency µs: mean=%.2f p50=%.2f p90=%.2f p99=%.2f max=%.2f\n",
		r.Latency.Mean, r.Latency.P50, r.Latency.P90, r.Latency.P99, r.Latency.Max)
}
