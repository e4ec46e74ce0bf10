package commands

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/callvox/kbengine/internal/knowledge"
	"github.com/callvox/kbengine/internal/logging"
)

// NewStatsCmd constructs the `kbengine stats` command, which prints a
// tenant's corpus statistics.
func NewStatsCmd() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print corpus statistics for a tenant",
		Long: `Print document counts by type and category, tag cardinality, average
content length, and the most recent update time for a tenant's corpus.

Examples:
  kbengine stats --tenant acme`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if tenant == "" {
				return fmt.Errorf("stats: --tenant is required")
			}

			deps, err := buildEngine(ctx, log, knowledge.NopPublisher{})
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer deps.Close()

			stats, err := deps.Service.Stats(ctx, tenant)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			color.Cyan("tenant %s", tenant)
			fmt.Printf("documents:         %d\n", stats.TotalDocuments)
			fmt.Printf("distinct tags:     %d\n", stats.TotalTags)
			fmt.Printf("avg content chars: %d\n", stats.AverageContentLength)
			fmt.Printf("last updated:      %s\n", stats.LastUpdated.Format("2006-01-02 15:04:05 MST"))

			printCounts("by type", stats.DocumentsByType)
			printCounts("by category", stats.DocumentsByCategory)
			return nil
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant to report on (required)")

	return cmd
}

// printCounts prints a count map in descending order, largest first, with
// alphabetical ties.
func printCounts(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Printf("%s:\n", label)
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k, counts[k])
	}
}
