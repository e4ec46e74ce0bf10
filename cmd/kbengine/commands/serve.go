package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/callvox/kbengine/internal/knowledge"
	"github.com/callvox/kbengine/internal/logging"
	"github.com/callvox/kbengine/internal/server"
)

// NewServeCmd constructs the `kbengine serve` command, which starts the
// HTTP server that fronts the knowledge engine.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the kbengine HTTP server",
		Long: `Start the knowledge engine HTTP server.

The server exposes tenant-scoped document CRUD, similarity search, context
assembly, and corpus statistics under /api, plus Prometheus metrics on
/metrics and health/readiness probes. Every knowledge route requires the
X-Tenant-ID header; set KB_API_KEY to require Bearer authentication.

Examples:
  kbengine serve
  kbengine serve --port 9090
  QDRANT_HOST=qdrant.internal kbengine serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Engine events are logged and counted in /metrics.
			publisher := server.NewMetricsPublisher(
				prometheus.DefaultRegisterer,
				knowledge.LogPublisher{Logger: log},
			)

			deps, err := buildEngine(ctx, log, publisher)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer deps.Close()

			srv, err := server.New(deps.Service, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: deps.Pingers,
				APIKey:  os.Getenv("KB_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
