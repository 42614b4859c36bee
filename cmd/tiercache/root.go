package main

import (
	"github.com/spf13/cobra"

	"github.com/discochess/tiercache/internal/config"
)

var (
	// Global flags.
	cfgFile string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tiercache",
	Short: "Multi-level cache with a persisted session level",
	Long: `tiercache manages a multi-level cache: a fast in-process memory level
in front of a session level persisted through a host store (local disk,
S3, GCS or Redis). Values written in one invocation survive to the next.

Configuration is read from flags, TIERCACHE_* environment variables and an
optional tiercache.yaml, in that order of precedence.

Examples:
  # Store a value for ten minutes, tagged as a product
  tiercache set sku-1 '{"title":"Shoe"}' --ttl 10m --kind product

  # Read it back
  tiercache get sku-1

  # Drop every product entry
  tiercache clear --kind product

  # Run a synthetic workload and serve Prometheus metrics
  tiercache bench --duration 30s --metrics-addr :9090`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./tiercache.yaml)")
	pf.StringP("data-dir", "d", "./tiercache-data", "directory for the disk backend")
	pf.String("backend", config.BackendDisk, "session host backend: disk, s3, gcs or redis")
	pf.String("codec", "zstd", "session payload codec: none, gzip or zstd")
	pf.String("namespace", "", "session namespace (default tiercache)")
	pf.BoolP("verbose", "v", false, "enable debug logging")
}
