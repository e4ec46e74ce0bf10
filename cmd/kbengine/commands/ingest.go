package commands

import (
	"bufio"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/callvox/kbengine/internal/ingestion"
	"github.com/callvox/kbengine/internal/knowledge"
	"github.com/callvox/kbengine/internal/logging"
)

// NewIngestCmd constructs the `kbengine ingest` command, which batch-loads
// knowledge documents from a JSONL file.
func NewIngestCmd() *cobra.Command {
	var tenant string
	var file string
	var continueOnError bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Batch-load knowledge documents from a JSONL file",
		Long: `Read knowledge documents from a JSONL file (one JSON object per line)
and create them for the given tenant. Each record goes through the normal
create flow: validation, embedding, persistence, and indexing.

Record shape:
  {"title":"...","content":"...","type":"faq","category":"billing","tags":["..."]}

Examples:
  kbengine ingest --tenant acme --file kb.jsonl
  kbengine ingest --tenant acme --file kb.jsonl --continue-on-error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if tenant == "" {
				return fmt.Errorf("ingest: --tenant is required")
			}
			if file == "" {
				return fmt.Errorf("ingest: --file is required")
			}

			deps, err := buildEngine(ctx, log, knowledge.LogPublisher{Logger: log})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer deps.Close()

			total, err := countLines(file)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("ingest: open %s: %w", file, err)
			}
			defer f.Close()

			bar := progressbar.NewOptions(total,
				progressbar.OptionSetDescription(color.BlueString("ingesting %s", file)),
				progressbar.OptionSetItsString("docs"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowElapsedTimeOnFinish(),
			)

			pipeline, err := ingestion.NewPipeline(deps.Service, &ingestion.Config{
				ContinueOnError: continueOnError,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			report, err := pipeline.Ingest(ctx, tenant, f, func(line int, lineErr error) {
				_ = bar.Add(1)
				if lineErr != nil {
					fmt.Fprintln(os.Stderr)
					color.Red("line %d: %v", line, lineErr)
				}
			})
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			color.Green("✓ Created %d documents for tenant %s", report.Created, tenant)
			if n := len(report.Failures); n > 0 {
				color.Yellow("%d records were rejected (see errors above)", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant to create the documents for (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSONL file to read (required)")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Keep going when a record is rejected")

	return cmd
}

// countLines counts non-empty lines in the file so the progress bar has a
// real total.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("count lines in %s: %w", path, err)
	}
	return count, nil
}
