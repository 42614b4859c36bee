package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/discochess/tiercache"
)

var errNotFound = errors.New("key not found")

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the value stored under a key",
	Long: `Print the value stored under KEY. Levels are searched fastest first and a
hit on the session level is promoted into memory.

Use --level to read a single level without promotion.`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var (
	getLevel   string
	showTiming bool
)

func init() {
	getCmd.Flags().StringVar(&getLevel, "level", "", "read only this level (memory or session)")
	getCmd.Flags().BoolVar(&showTiming, "timing", false, "show lookup timing")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	start := time.Now()
	var (
		v  string
		ok bool
	)
	if getLevel != "" {
		l, err := tiercache.ParseLevel(getLevel)
		if err != nil {
			return err
		}
		v, ok = s.cache.GetFrom(ctx, args[0], l)
	} else {
		v, ok = s.cache.Get(ctx, args[0])
	}
	elapsed := time.Since(start)

	if !ok {
		return fmt.Errorf("%w: %q", errNotFound, args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	if showTiming {
		fmt.Fprintf(cmd.ErrOrStderr(), "Time: %s\n", elapsed)
	}
	return nil
}
