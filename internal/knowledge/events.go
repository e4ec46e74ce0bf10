package knowledge

import (
	"context"
	"log/slog"
	"time"
)

// EventType identifies a lifecycle or search notification.
type EventType string

const (
	// EventCreated is emitted after a document is persisted.
	EventCreated EventType = "created"
	// EventUpdated is emitted after a document is overwritten.
	EventUpdated EventType = "updated"
	// EventDeleted is emitted after a document is removed.
	EventDeleted EventType = "deleted"
	// EventSearched is emitted after every search, carrying the query and
	// result count. Purely observational; never used for ranking.
	EventSearched EventType = "searched"
)

// Event is a fire-and-forget notification about engine activity.
type Event struct {
	// Type is the event kind.
	Type EventType
	// TenantID is the tenant the event belongs to.
	TenantID string
	// DocumentID is set for lifecycle events, empty for searches.
	DocumentID string
	// Query is set for EventSearched.
	Query string
	// Results is the result count for EventSearched.
	Results int
	// At is when the event was emitted.
	At time.Time
}

// Publisher receives engine events. Implementations must not block the
// calling operation for long and must never fail it: the engine ignores
// publish outcomes entirely. Safe for concurrent use.
type Publisher interface {
	// Publish delivers a single event.
	Publish(ctx context.Context, ev Event)
}

// NopPublisher discards all events. Used when no publisher is configured.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(context.Context, Event) {}

// LogPublisher writes every event as a structured log entry. It is the
// default publisher wired by the CLI.
type LogPublisher struct {
	// Logger receives the entries. Must not be nil.
	Logger *slog.Logger
}

// Publish logs the event at info level.
func (p LogPublisher) Publish(ctx context.Context, ev Event) {
	attrs := []any{
		slog.String("type", string(ev.Type)),
		slog.String("tenant_id", ev.TenantID),
	}
	if ev.DocumentID != "" {
		attrs = append(attrs, slog.String("document_id", ev.DocumentID))
	}
	if ev.Type == EventSearched {
		attrs = append(attrs, slog.String("query", ev.Query), slog.Int("results", ev.Results))
	}
	p.Logger.InfoContext(ctx, "knowledge event", attrs...)
}
