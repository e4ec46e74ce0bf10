// Package ingestion implements the batch document ingestion pipeline.
// It reads knowledge documents from a JSONL stream, one JSON object per
// line, and creates each one through the knowledge engine so the normal
// validation, embedding, and event flow applies.
// This pipeline is invoked by the `kbengine ingest` CLI command.
package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/callvox/kbengine/internal/knowledge"
)

// maxLineBytes bounds a single JSONL record. Knowledge documents are prose,
// not blobs; 4 MiB leaves ample headroom.
const maxLineBytes = 4 << 20

// creator is the single engine operation the pipeline needs.
// *knowledge.Service satisfies it; tests inject a fake.
type creator interface {
	CreateDocument(ctx context.Context, tenantID string, req knowledge.CreateRequest) (*knowledge.Document, error)
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ContinueOnError keeps processing after a record fails instead of
	// stopping at the first error.
	ContinueOnError bool
}

// Failure records one rejected JSONL line.
type Failure struct {
	// Line is the 1-based line number in the input stream.
	Line int
	// Err is the reason the record was rejected.
	Err error
}

// Report summarises an ingestion run.
type Report struct {
	// Created is the number of documents successfully created.
	Created int
	// Failures lists every rejected line. Empty on a clean run.
	Failures []Failure
}

// Pipeline reads JSONL records and creates them as knowledge documents.
type Pipeline struct {
	// engine creates the documents.
	engine creator
	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided engine and config.
func NewPipeline(engine creator, cfg *Config) (*Pipeline, error) {
	if engine == nil {
		return nil, fmt.Errorf("ingestion: engine must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return &Pipeline{engine: engine, cfg: cfg}, nil
}

// Ingest reads JSONL records from r and creates each as a document for
// tenantID. Blank lines are skipped. Progress is reported via the optional
// progress callback after every processed line.
//
// With ContinueOnError unset, the first failure stops the run and is
// returned as the error alongside the partial report. With it set, failures
// are collected in the report and the returned error is nil unless the
// stream itself could not be read.
func (p *Pipeline) Ingest(ctx context.Context, tenantID string, r io.Reader, progress func(line int, err error)) (*Report, error) {
	if progress == nil {
		progress = func(int, error) {}
	}

	report := &Report{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		if err := p.ingestLine(ctx, tenantID, raw); err != nil {
			report.Failures = append(report.Failures, Failure{Line: line, Err: err})
			progress(line, err)
			if !p.cfg.ContinueOnError {
				return report, fmt.Errorf("ingestion: line %d: %w", line, err)
			}
			continue
		}

		report.Created++
		progress(line, nil)
	}

	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("ingestion: read input: %w", err)
	}

	return report, nil
}

// ingestLine decodes one JSONL record and creates the document.
func (p *Pipeline) ingestLine(ctx context.Context, tenantID string, raw []byte) error {
	var req knowledge.CreateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	if _, err := p.engine.CreateDocument(ctx, tenantID, req); err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}
