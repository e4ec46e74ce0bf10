package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/callvox/kbengine/internal/knowledge"
	"github.com/callvox/kbengine/internal/logging"
)

// NewSearchCmd constructs the `kbengine search` command, which runs a
// one-off similarity search against a tenant's corpus.
func NewSearchCmd() *cobra.Command {
	var tenant string
	var docType string
	var category string
	var tags []string
	var limit int
	var threshold float64
	var showContext bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a tenant's knowledge base from the command line",
		Long: `Run a similarity search against a tenant's knowledge base and print the
ranked results. With --context the assembled prompt context is printed
instead, exactly as a call agent would receive it.

Examples:
  kbengine search --tenant acme "refund policy"
  kbengine search --tenant acme --type faq --limit 3 "opening hours"
  kbengine search --tenant acme --context "refund policy"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			query := args[0]

			if tenant == "" {
				return fmt.Errorf("search: --tenant is required")
			}

			deps, err := buildEngine(ctx, log, knowledge.NopPublisher{})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer deps.Close()

			if showContext {
				text, err := deps.Service.BuildContext(ctx, tenant, query, limit)
				if err != nil {
					return fmt.Errorf("search: %w", err)
				}
				if text == "" {
					color.Yellow("no relevant documents")
					return nil
				}
				fmt.Println(text)
				return nil
			}

			q := knowledge.SearchQuery{
				Query:    query,
				Type:     docType,
				Category: category,
				Tags:     tags,
				Limit:    limit,
			}
			if cmd.Flags().Changed("threshold") {
				q.Threshold = &threshold
			}

			results, err := deps.Service.Search(ctx, tenant, q)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(results) == 0 {
				color.Yellow("no results")
				return nil
			}

			for i, res := range results {
				color.Cyan("%d. %s", i+1, res.Document.Title)
				fmt.Printf("   type=%s score=%.3f similarity=%.3f\n",
					res.Document.Type, res.RelevanceScore, res.Similarity)
				if len(res.Document.Tags) > 0 {
					fmt.Printf("   tags: %s\n", strings.Join(res.Document.Tags, ", "))
				}
				fmt.Printf("   %s\n", snippet(res.Document.Content, 160))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant to search (required)")
	cmd.Flags().StringVar(&docType, "type", "", "Restrict to one document type")
	cmd.Flags().StringVar(&category, "category", "", "Restrict to one category")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Restrict to documents with any of these tags")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default 5, capped at 20)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum cosine similarity (default 0.7)")
	cmd.Flags().BoolVar(&showContext, "context", false, "Print the assembled prompt context instead of results")

	return cmd
}

// snippet trims s to at most n runes on a single line.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
