package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/discochess/tiercache"
	"github.com/discochess/tiercache/internal/bench"
	"github.com/discochess/tiercache/internal/stats"
	statslogger "github.com/discochess/tiercache/internal/stats/logger"
	promstats "github.com/discochess/tiercache/internal/stats/prometheus"
	"github.com/discochess/tiercache/internal/store/memstore"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a synthetic workload against an in-process cache",
	Long: `Run a read/write workload with Zipf-distributed keys against a fresh
in-process cache and report throughput, hit ratio and latency quantiles.

The session level, when enabled, is backed by an in-memory host store so
the run measures the engine rather than a remote backend.`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

var (
	benchCfg     = bench.DefaultConfig()
	benchSession bool
	metricsAddr  string
)

func init() {
	f := benchCmd.Flags()
	f.IntVar(&benchCfg.Workers, "workers", benchCfg.Workers, "number of worker goroutines")
	f.IntVar(&benchCfg.Ops, "ops", 0, "operations per worker (0 = run for --duration)")
	f.DurationVar(&benchCfg.Duration, "duration", benchCfg.Duration, "benchmark duration")
	f.IntVar(&benchCfg.ReadPct, "reads", benchCfg.ReadPct, "read percentage [0..100]")
	f.IntVar(&benchCfg.Keys, "keys", benchCfg.Keys, "keyspace size")
	f.Float64Var(&benchCfg.ZipfS, "zipf-s", benchCfg.ZipfS, "Zipf s > 1 (skew)")
	f.Float64Var(&benchCfg.ZipfV, "zipf-v", benchCfg.ZipfV, "Zipf v >= 1")
	f.IntVar(&benchCfg.Preload, "preload", benchCfg.Preload, "entries written before the run")
	f.Int64Var(&benchCfg.Seed, "seed", benchCfg.Seed, "random seed")
	f.BoolVar(&benchSession, "session", false, "add a session level backed by an in-memory host")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics at addr (e.g. :9090)")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(cmd.ErrOrStderr(), "metrics server: %v\n", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(cmd.ErrOrStderr(), "metrics: serving at %s/metrics\n", metricsAddr)
	}

	opts, err := cfg.CacheOptions()
	if err != nil {
		return err
	}
	var collector stats.Collector = promstats.New(reg)
	if cfg.Verbose {
		collector = stats.Tee(collector, statslogger.New(log.Named("tiercache.stats")))
	}
	opts = append(opts,
		tiercache.WithLogger(log),
		tiercache.WithStats(collector),
	)
	if benchSession {
		opts = append(opts, tiercache.WithSessionStore(memstore.New()))
	}

	c, err := tiercache.New[string](opts...)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	defer c.Close()

	res, err := bench.Run(ctx, c, benchCfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "levels=%v policy=%s codec=%s\n", c.Levels(), cfg.Cache.Policy, cfg.Codec)
	bench.Report(out, benchCfg, res)

	m := c.Metrics()
	for _, l := range c.Levels() {
		lm := m.Levels[l]
		fmt.Fprintf(out, "%s: entries=%d size=%s hit-ratio=%.2f%% evictions=%d\n",
			l, lm.Entries, formatBytes(lm.SizeBytes), lm.HitRatio*100, lm.Evictions)
	}
	return nil
}
