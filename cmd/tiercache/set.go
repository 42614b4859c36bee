package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/discochess/tiercache"
)

var setCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store a value under a key",
	Long: `Store VALUE under KEY in every configured level, or only in the levels
named with --level. Without --ttl the configured default TTL applies; a TTL
of 0 never expires.`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

var (
	setTTL    time.Duration
	setKind   string
	setLevels []string
)

func init() {
	setCmd.Flags().DurationVar(&setTTL, "ttl", 0, "time to live (default: configured default TTL)")
	setCmd.Flags().StringVar(&setKind, "kind", "", "kind tag used for metrics and selective clearing")
	setCmd.Flags().StringSliceVar(&setLevels, "level", nil, "write only these levels (memory, session)")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := []tiercache.SetOption{tiercache.WithKind(setKind)}
	if cmd.Flags().Changed("ttl") {
		opts = append(opts, tiercache.WithTTL(setTTL))
	}
	if len(setLevels) > 0 {
		levels := make([]tiercache.Level, 0, len(setLevels))
		for _, name := range setLevels {
			l, err := tiercache.ParseLevel(name)
			if err != nil {
				return err
			}
			levels = append(levels, l)
		}
		opts = append(opts, tiercache.WithLevels(levels...))
	}

	s.cache.Set(ctx, args[0], args[1], opts...)
	return reportErrors(cmd, s.cache.Metrics())
}
