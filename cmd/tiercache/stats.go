package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/discochess/tiercache"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache occupancy and metrics",
	Long: `Display per-level occupancy of the cache, including:
- Entries and estimated size of each level
- Hit ratio and operation counters for this invocation
- Recent error events`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

var outputJSON bool

func init() {
	statsCmd.Flags().BoolVar(&outputJSON, "json", false, "output metrics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	m := s.cache.Metrics()
	out := cmd.OutOrStdout()
	if outputJSON {
		return printMetricsJSON(out, s.cache.Levels(), m)
	}
	printMetricsText(out, s.cache.Levels(), m)
	return nil
}

func printMetricsText(out io.Writer, levels []tiercache.Level, m tiercache.Metrics) {
	fmt.Fprintf(out, "Backend:    %s\n", cfg.Backend)
	fmt.Fprintf(out, "Namespace:  %s\n", cfg.Namespace)
	fmt.Fprintf(out, "Entries:    %d\n", m.Entries)
	fmt.Fprintf(out, "Size:       %s\n", formatBytes(m.SizeBytes))
	fmt.Fprintf(out, "Hit ratio:  %.2f%%\n\n", m.HitRatio*100)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tENTRIES\tSIZE\tHITS\tMISSES\tEVICTIONS\tEXPIRATIONS\tERRORS")
	for _, l := range levels {
		lm := m.Levels[l]
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\t%d\t%d\t%d\n",
			l, lm.Entries, formatBytes(lm.SizeBytes), lm.Hits, lm.Misses,
			lm.Evictions, lm.Expirations, lm.Errors)
	}
	tw.Flush()

	if len(m.Errors) > 0 {
		fmt.Fprintln(out)
		printErrors(out, m.Errors)
	}
}

type levelJSON struct {
	Level       string  `json:"level"`
	Entries     int     `json:"entries"`
	SizeBytes   int64   `json:"size_bytes"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRatio    float64 `json:"hit_ratio"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	Rejections  int64   `json:"rejections"`
	Errors      int64   `json:"errors"`
}

type errorJSON struct {
	Operation string    `json:"operation"`
	Level     string    `json:"level,omitempty"`
	Message   string    `json:"message"`
	Key       string    `json:"key,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type metricsJSON struct {
	Entries   int         `json:"entries"`
	SizeBytes int64       `json:"size_bytes"`
	Hits      int64       `json:"hits"`
	Misses    int64       `json:"misses"`
	HitRatio  float64     `json:"hit_ratio"`
	Levels    []levelJSON `json:"levels"`
	Errors    []errorJSON `json:"errors"`
}

func printMetricsJSON(out io.Writer, levels []tiercache.Level, m tiercache.Metrics) error {
	doc := metricsJSON{
		Entries:   m.Entries,
		SizeBytes: m.SizeBytes,
		Hits:      m.Hits,
		Misses:    m.Misses,
		HitRatio:  m.HitRatio,
		Levels:    make([]levelJSON, 0, len(levels)),
		Errors:    make([]errorJSON, 0, len(m.Errors)),
	}
	for _, l := range levels {
		lm := m.Levels[l]
		doc.Levels = append(doc.Levels, levelJSON{
			Level:       l.String(),
			Entries:     lm.Entries,
			SizeBytes:   lm.SizeBytes,
			Hits:        lm.Hits,
			Misses:      lm.Misses,
			HitRatio:    lm.HitRatio,
			Evictions:   lm.Evictions,
			Expirations: lm.Expirations,
			Rejections:  lm.Rejections,
			Errors:      lm.Errors,
		})
	}
	for _, ev := range m.Errors {
		doc.Errors = append(doc.Errors, errorJSON(ev))
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func printErrors(out io.Writer, events []tiercache.ErrorEvent) {
	fmt.Fprintln(out, "Recent errors:")
	for _, ev := range slices.Backward(events) {
		where := ev.Operation
		if ev.Level != "" {
			where += "/" + ev.Level
		}
		if ev.Key != "" {
			where += " " + ev.Key
		}
		fmt.Fprintf(out, "  %s  %s: %s\n", ev.Timestamp.Format(time.RFC3339), where, ev.Message)
	}
}

// reportErrors prints error events to stderr without failing the command.
func reportErrors(cmd *cobra.Command, m tiercache.Metrics) error {
	if len(m.Errors) > 0 {
		printErrors(cmd.ErrOrStderr(), m.Errors)
	}
	return nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
