package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/razornet-sec/smartlist/pkg/scorer"
	"github.com/razornet-sec/smartlist/pkg/types"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit recommendation diversity over the selection history",
	Long: `Audit computes entropy and clustering metrics over recent selections,
flagging when the engine is degenerating toward the same few wordlists.

Examples:
  smartlist audit --days 30
  smartlist audit --days 7 --clusters`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().Int("days", 30, "analysis window in days")
	auditCmd.Flags().Bool("clusters", false, "include per-context cluster report")
	auditCmd.Flags().Bool("json", false, "machine-readable JSON output")

	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")
	withClusters, _ := cmd.Flags().GetBool("clusters")
	asJSON, _ := cmd.Flags().GetBool("json")

	analyzer := scorer.NewAnalyzer(selStore, log)

	metrics, err := analyzer.Analyze(cmd.Context(), days)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	var clusters []types.ContextCluster
	if withClusters {
		clusters, err = analyzer.DetectClusters(cmd.Context(), days)
		if err != nil {
			return fmt.Errorf("cluster detection failed: %w", err)
		}
	}

	if asJSON {
		out := struct {
			Metrics  *types.EntropyMetrics  `json:"metrics"`
			Clusters []types.ContextCluster `json:"clusters,omitempty"`
		}{metrics, clusters}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	renderMetrics(metrics)
	if withClusters {
		renderClusters(clusters)
	}
	return nil
}

func renderMetrics(m *types.EntropyMetrics) {
	color.Cyan("Recommendation diversity, last %d days\n\n", m.WindowDays)

	if m.Quality == types.EntropyQualityInsufficient {
		color.Yellow("  Insufficient data: %d records (need at least 3)\n", m.Records)
		return
	}

	qualityColor := color.New(color.FgGreen)
	switch m.Quality {
	case types.EntropyQualityAcceptable:
		qualityColor = color.New(color.FgYellow)
	case types.EntropyQualityPoor:
		qualityColor = color.New(color.FgRed)
	}

	color.White("  Records analyzed:   %d\n", m.Records)
	color.White("  Distinct wordlists: %d\n", m.DistinctWordlists)
	color.White("  Entropy score:      %.3f\n", m.EntropyScore)
	color.White("  Top-3 clustering:   %.1f%%\n", m.ClusteringPct)
	color.White("  Context diversity:  %.3f\n", m.ContextDiversity)
	qualityColor.Printf("  Quality:            %s\n", m.Quality)

	if len(m.TopWordlists) > 0 {
		fmt.Println()
		color.White("  Most recommended:\n")
		for _, freq := range m.TopWordlists {
			color.White("    %-40s %d\n", freq.Name, freq.Count)
		}
	}
}

func renderClusters(clusters []types.ContextCluster) {
	fmt.Println()
	if len(clusters) == 0 {
		color.Green("No repetitive context clusters detected\n")
		return
	}

	color.Cyan("Context clusters (repeated context -> same lists?)\n\n")
	for _, cluster := range clusters {
		color.White("  %s (%d selections)\n", cluster.Key, cluster.Members)
		for _, freq := range cluster.CommonWordlists {
			color.White("      %-40s %d\n", freq.Name, freq.Count)
		}
	}
}
