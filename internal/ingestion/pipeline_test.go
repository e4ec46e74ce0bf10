package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/callvox/kbengine/internal/knowledge"
)

// fakeCreator records create calls and fails on titles listed in failOn.
type fakeCreator struct {
	created []knowledge.CreateRequest
	tenants []string
	failOn  map[string]error
}

func (f *fakeCreator) CreateDocument(_ context.Context, tenantID string, req knowledge.CreateRequest) (*knowledge.Document, error) {
	if err, ok := f.failOn[req.Title]; ok {
		return nil, err
	}
	f.created = append(f.created, req)
	f.tenants = append(f.tenants, tenantID)
	return &knowledge.Document{ID: "id", Title: req.Title}, nil
}

const sampleJSONL = `{"title":"Refund Policy","content":"30 days.","type":"policy","tags":["refunds"]}

{"title":"Greeting Script","content":"Hello, thanks for calling.","type":"script"}
`

func TestIngest_CleanRun(t *testing.T) {
	t.Parallel()

	eng := &fakeCreator{}
	p, err := NewPipeline(eng, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	var seen int
	report, err := p.Ingest(context.Background(), "t1", strings.NewReader(sampleJSONL), func(line int, err error) {
		seen++
		if err != nil {
			t.Errorf("line %d: unexpected error %v", line, err)
		}
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if report.Created != 2 || len(report.Failures) != 0 {
		t.Errorf("report: %+v", report)
	}
	if seen != 2 {
		t.Errorf("progress calls: want 2, got %d", seen)
	}
	if len(eng.created) != 2 || eng.created[0].Title != "Refund Policy" {
		t.Errorf("created: %+v", eng.created)
	}
	for _, tenant := range eng.tenants {
		if tenant != "t1" {
			t.Errorf("tenant: got %q", tenant)
		}
	}
	if len(eng.created[0].Tags) != 1 || eng.created[0].Tags[0] != "refunds" {
		t.Errorf("tags not decoded: %v", eng.created[0].Tags)
	}
}

func TestIngest_StopsOnFirstError(t *testing.T) {
	t.Parallel()

	eng := &fakeCreator{failOn: map[string]error{"Refund Policy": knowledge.ErrInvalidInput}}
	p, _ := NewPipeline(eng, nil)

	report, err := p.Ingest(context.Background(), "t1", strings.NewReader(sampleJSONL), nil)
	if err == nil {
		t.Fatal("want error on first failing record")
	}
	if !errors.Is(err, knowledge.ErrInvalidInput) {
		t.Errorf("error should wrap the cause, got %v", err)
	}
	if report.Created != 0 {
		t.Errorf("nothing should be created before the failure, got %d", report.Created)
	}
	if len(eng.created) != 0 {
		t.Errorf("engine should not see the second record, got %d", len(eng.created))
	}
}

func TestIngest_ContinueOnError(t *testing.T) {
	t.Parallel()

	eng := &fakeCreator{failOn: map[string]error{"Refund Policy": knowledge.ErrInvalidInput}}
	p, _ := NewPipeline(eng, &Config{ContinueOnError: true})

	report, err := p.Ingest(context.Background(), "t1", strings.NewReader(sampleJSONL), nil)
	if err != nil {
		t.Fatalf("continue-on-error run must not fail: %v", err)
	}
	if report.Created != 1 {
		t.Errorf("created: want 1, got %d", report.Created)
	}
	if len(report.Failures) != 1 || report.Failures[0].Line != 1 {
		t.Errorf("failures: %+v", report.Failures)
	}
}

func TestIngest_MalformedLine(t *testing.T) {
	t.Parallel()

	eng := &fakeCreator{}
	p, _ := NewPipeline(eng, &Config{ContinueOnError: true})

	input := "{not json}\n" + `{"title":"OK","content":"c","type":"faq"}` + "\n"
	report, err := p.Ingest(context.Background(), "t1", strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Created != 1 || len(report.Failures) != 1 {
		t.Errorf("report: %+v", report)
	}
}

func TestNewPipeline_NilEngine(t *testing.T) {
	t.Parallel()
	if _, err := NewPipeline(nil, nil); err == nil {
		t.Error("want error for nil engine")
	}
}
