package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discochess/tiercache"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove entries from the cache",
	Long: `Remove every entry, only the entries tagged with --kind, or every entry
of one --level. With --expired, run a sweep instead: expired entries are
removed and levels over capacity are trimmed.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

var (
	clearKind    string
	clearLevel   string
	clearExpired bool
)

func init() {
	clearCmd.Flags().StringVar(&clearKind, "kind", "", "remove only entries with this kind tag")
	clearCmd.Flags().StringVar(&clearLevel, "level", "", "clear only this level (memory or session)")
	clearCmd.Flags().BoolVar(&clearExpired, "expired", false, "remove expired entries only")
	clearCmd.MarkFlagsMutuallyExclusive("kind", "level", "expired")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	switch {
	case clearExpired:
		before := s.cache.Metrics().Entries
		s.cache.Sweep(ctx)
		fmt.Fprintf(out, "Removed %d entries.\n", before-s.cache.Metrics().Entries)
	case cmd.Flags().Changed("kind"):
		n := s.cache.ClearKind(ctx, clearKind)
		fmt.Fprintf(out, "Removed %d entries of kind %q.\n", n, clearKind)
	case clearLevel != "":
		l, err := tiercache.ParseLevel(clearLevel)
		if err != nil {
			return err
		}
		s.cache.ClearLevel(ctx, l)
		fmt.Fprintf(out, "Cleared the %s level.\n", l)
	default:
		s.cache.Clear(ctx)
		fmt.Fprintln(out, "Cleared all levels.")
	}
	return reportErrors(cmd, s.cache.Metrics())
}
