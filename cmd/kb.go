package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/razornet-sec/smartlist/internal/knowledge"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect the loaded knowledge base",
}

var kbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which knowledge resources loaded and why the others did not",
	RunE:  runKBStatus,
}

func init() {
	kbStatusCmd.Flags().Bool("json", false, "machine-readable JSON output")
	kbCmd.AddCommand(kbStatusCmd)
	rootCmd.AddCommand(kbCmd)
}

func runKBStatus(cmd *cobra.Command, args []string) error {
	kb := provider.Current()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		out := struct {
			Availability knowledge.Availability `json:"availability"`
			Wordlists    int                    `json:"wordlists"`
		}{kb.Availability, len(kb.Catalog())}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	color.Cyan("Knowledge base status\n\n")
	renderResource("Technology database", kb.Availability.Technologies)
	renderResource("Port database", kb.Availability.Ports)
	renderResource("Wordlist catalog", kb.Availability.Catalog)
	fmt.Println()
	color.White("  Usable wordlist entries: %d\n", len(kb.Catalog()))

	if len(kb.Catalog()) == 0 {
		color.Red("\n  No usable catalog entries: recommendations will fail\n")
	}
	return nil
}

func renderResource(name string, report knowledge.ResourceReport) {
	if report.Loaded {
		color.Green("  [ok]   %-22s %s\n", name, report.Path)
		return
	}
	color.Red("  [fail] %-22s %s\n", name, report.Path)
	color.Yellow("         reason: %s", report.Reason)
	if report.Err != "" {
		color.Yellow(" (%s)", report.Err)
	}
	fmt.Println()
}
