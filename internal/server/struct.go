package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/callvox/kbengine/internal/knowledge"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics. If nil, the default
	// registry is used. Tests inject a fresh registry to stay hermetic.
	Registry *prometheus.Registry
}

// engine is the knowledge surface the handlers call. *knowledge.Service
// satisfies it; tests inject a fake.
type engine interface {
	CreateDocument(ctx context.Context, tenantID string, req knowledge.CreateRequest) (*knowledge.Document, error)
	UpdateDocument(ctx context.Context, tenantID, id string, patch knowledge.UpdatePatch) (*knowledge.Document, error)
	DeleteDocument(ctx context.Context, tenantID, id string) error
	GetDocument(ctx context.Context, tenantID, id string) (*knowledge.Document, error)
	ListDocuments(ctx context.Context, tenantID string, page, pageSize int, f knowledge.Filters) ([]*knowledge.Document, int, error)
	Search(ctx context.Context, tenantID string, q knowledge.SearchQuery) ([]knowledge.RankedResult, error)
	BuildContext(ctx context.Context, tenantID, query string, limit int) (string, error)
	Stats(ctx context.Context, tenantID string) (*knowledge.Stats, error)
}

// Server is the HTTP server that fronts the knowledge engine.
type Server struct {
	// engine handles all knowledge operations.
	engine engine
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// listDocumentsResponse is the JSON response for GET /api/documents.
type listDocumentsResponse struct {
	// Documents is the requested page of documents.
	Documents []*knowledge.Document `json:"documents"`
	// Total is the number of documents matching the filters across all pages.
	Total int `json:"total"`
	// Page is the 1-based page number that was served.
	Page int `json:"page"`
	// PageSize is the page size that was applied.
	PageSize int `json:"pageSize"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	// Results is the ranked result list, best first.
	Results []knowledge.RankedResult `json:"results"`
}

// contextRequest is the JSON body for POST /api/context.
type contextRequest struct {
	// Query is the free-text query to assemble context for.
	Query string `json:"query"`
	// Limit caps the number of documents included (default 3).
	Limit int `json:"limit,omitempty"`
}

// contextResponse is the JSON response for POST /api/context.
type contextResponse struct {
	// Context is the assembled prompt context. Empty when nothing matched.
	Context string `json:"context"`
}

// errorResponse is the JSON body for all error statuses.
type errorResponse struct {
	// Error is the human-readable failure description.
	Error string `json:"error"`
}
