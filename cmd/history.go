package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and maintain the selection history",
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the selection history summary",
	RunE:  runHistoryStats,
}

var historyCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune history partitions older than the retention window",
	RunE:  runHistoryCleanup,
}

func init() {
	historyStatsCmd.Flags().Bool("json", false, "machine-readable JSON output")
	historyCleanupCmd.Flags().Int("max-age-days", 30, "delete day partitions older than this")

	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyCleanupCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	summary, err := selStore.Summary(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read history summary: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	color.Cyan("Selection history\n\n")
	color.White("  Total records:  %d\n", summary.TotalRecords)
	color.White("  Fallback usage: %.1f%%\n", summary.FallbackPct)
	color.White("  Updated:        %s\n", summary.UpdatedAt.Format("2006-01-02 15:04:05 UTC"))

	if len(summary.ByTechnology) > 0 {
		fmt.Println()
		color.White("  By technology:\n")
		for _, line := range sortedCounts(summary.ByTechnology) {
			color.White("    %s\n", line)
		}
	}
	if len(summary.ByPortCategory) > 0 {
		fmt.Println()
		color.White("  By port category:\n")
		byCategory := map[string]int{}
		for category, count := range summary.ByPortCategory {
			byCategory[string(category)] = count
		}
		for _, line := range sortedCounts(byCategory) {
			color.White("    %s\n", line)
		}
	}
	return nil
}

func sortedCounts(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("%-30s %d", key, counts[key]))
	}
	return lines
}

func runHistoryCleanup(cmd *cobra.Command, args []string) error {
	if fileStore == nil {
		return fmt.Errorf("cleanup is only supported for the file history backend")
	}

	maxAge, _ := cmd.Flags().GetInt("max-age-days")
	removed, err := fileStore.CleanupOld(cmd.Context(), maxAge)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	if removed == 0 {
		color.Green("Nothing to prune: no partitions older than %d days\n", maxAge)
	} else {
		color.Green("Pruned %d day partition(s) older than %d days from %s\n",
			removed, maxAge, fileStore.Dir())
	}
	return nil
}
