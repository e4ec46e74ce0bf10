package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/callvox/kbengine/internal/embedder"
	"github.com/callvox/kbengine/internal/index"
	"github.com/callvox/kbengine/internal/knowledge"
	"github.com/callvox/kbengine/internal/server"
	"github.com/callvox/kbengine/internal/store"
)

// engineDeps bundles the constructed engine with everything the commands
// need around it: probes for readiness, and a cleanup that closes the
// store and index connections.
type engineDeps struct {
	// Service is the ready-to-use knowledge engine.
	Service *knowledge.Service
	// Pingers probe the engine's backing dependencies.
	Pingers []server.Pinger
	// Close releases the store and index connections.
	Close func()
}

// buildEngine wires the SQLite store, embedder, optional Qdrant index, and
// event publisher into a knowledge.Service. The Qdrant index is attached
// only when QDRANT_HOST is set; without it the engine scans the full corpus,
// which is the right default for small tenant knowledge bases.
func buildEngine(ctx context.Context, log *slog.Logger, publisher knowledge.Publisher) (*engineDeps, error) {
	dbPath := os.Getenv("KB_DB_PATH")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	log.Info("document store opened", slog.String("path", dbPath))

	emb, err := embedder.NewFromEnv()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("initialise embedder: %w", err)
	}
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", "local")
	log.Info("embedder initialised", slog.String("provider", embBackend))

	deps := &engineDeps{
		Pingers: []server.Pinger{st},
		Close:   func() { _ = st.Close() },
	}

	var candidateIndex knowledge.CandidateIndex
	if qdrantHost := os.Getenv("QDRANT_HOST"); qdrantHost != "" {
		qidx, err := index.NewQdrantIndex(ctx, &index.QdrantConfig{
			Host:       qdrantHost,
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "kb-documents"),
			VectorSize: uint64(embedder.DefaultDimensions(embBackend)),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("connect to qdrant at %s: %w", qdrantHost, err)
		}
		candidateIndex = qidx
		deps.Pingers = append(deps.Pingers, qidx)
		deps.Close = func() {
			_ = qidx.Close()
			_ = st.Close()
		}
		log.Info("qdrant candidate index ready", slog.String("host", qdrantHost))
	}

	svc, err := knowledge.NewService(st, emb, &knowledge.Config{
		Publisher: publisher,
		Index:     candidateIndex,
		Logger:    log,
	})
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("initialise engine: %w", err)
	}
	deps.Service = svc

	return deps, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
