package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/razornet-sec/smartlist/pkg/types"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend wordlists for a scanned service",
	Long: `Recommend ranked wordlists for one scoring context.

Examples:
  smartlist recommend --tech wordpress --port 443
  smartlist recommend --port 3306 --service "mysql 8.0"
  smartlist recommend --tech nginx --port 80 --header "Server=nginx/1.24" --json`,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().String("target", "", "target host (never persisted, used for context only)")
	recommendCmd.Flags().String("tech", "", "detected technology name")
	recommendCmd.Flags().Int("port", 0, "service port (1-65535)")
	recommendCmd.Flags().String("service", "", "service banner or name")
	recommendCmd.Flags().String("os", "", "OS hint")
	recommendCmd.Flags().String("version", "", "detected version string")
	recommendCmd.Flags().Float64("service-confidence", -1, "technology detection confidence (0-1)")
	recommendCmd.Flags().StringArray("header", nil, "observed HTTP header as key=value (repeatable)")
	recommendCmd.Flags().Bool("json", false, "machine-readable JSON output")

	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be 1-65535", port)
	}

	sc := types.ScoringContext{Port: port}
	sc.Target, _ = cmd.Flags().GetString("target")
	sc.Technology, _ = cmd.Flags().GetString("tech")
	sc.Service, _ = cmd.Flags().GetString("service")
	sc.OS, _ = cmd.Flags().GetString("os")
	sc.Version, _ = cmd.Flags().GetString("version")

	if confidence, _ := cmd.Flags().GetFloat64("service-confidence"); confidence >= 0 {
		if confidence > 1 {
			return fmt.Errorf("invalid confidence %.2f: must be 0-1", confidence)
		}
		sc.Confidence = &confidence
	}

	headerFlags, _ := cmd.Flags().GetStringArray("header")
	if len(headerFlags) > 0 {
		sc.Headers = map[string]string{}
		for _, raw := range headerFlags {
			key, value, found := strings.Cut(raw, "=")
			if !found {
				return fmt.Errorf("invalid header %q: expected key=value", raw)
			}
			sc.Headers[key] = value
		}
	}

	result, err := engine.Recommend(cmd.Context(), sc)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	renderResult(result, sc)
	return nil
}

func renderResult(result *types.ScoringResult, sc types.ScoringContext) {
	header := describeContext(sc)
	color.Cyan("Recommendations for %s\n\n", header)

	for i, name := range result.Wordlists {
		color.White("  %d. %s\n", i+1, name)
	}
	if len(result.Wordlists) == 0 {
		color.Yellow("  (no wordlists available)\n")
	}

	fmt.Println()
	tierColor := color.New(color.FgGreen)
	switch result.Confidence {
	case types.ConfidenceMedium:
		tierColor = color.New(color.FgYellow)
	case types.ConfidenceLow:
		tierColor = color.New(color.FgRed)
	}
	tierColor.Printf("  Confidence: %s (score %.3f)\n", result.Confidence, result.Score)

	if result.FallbackUsed {
		color.Yellow("  Fallback: no specific rule matched, generic lists selected\n")
	}
	if len(result.MatchedRules) > 0 {
		color.White("  Matched rules: %s\n", strings.Join(result.MatchedRules, ", "))
	}
	if div := result.Diversification; div != nil {
		color.White("  Rotation: %s", div.Strategy)
		if div.Reshuffled {
			fmt.Print(" (exploratory reshuffle)")
		}
		fmt.Println()
	}
}

func describeContext(sc types.ScoringContext) string {
	var parts []string
	if sc.Technology != "" {
		parts = append(parts, sc.Technology)
	}
	if sc.Service != "" {
		parts = append(parts, sc.Service)
	}
	parts = append(parts, fmt.Sprintf("port %d", sc.Port))
	return strings.Join(parts, ", ")
}
