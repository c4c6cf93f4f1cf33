package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadPipelineInfersFormatsAndNames(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pipeline.yaml", `
catalog:
  path: raw/apps_metadata.json
reviews:
  - path: raw/batch.csv
    delimiter: ";"
  - name: play
    path: raw/apps_reviews.jsonl
output:
  dir: out
  formats: [csv, parquet]
`)

	p, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}

	if p.Catalog.Format != FormatJSON {
		t.Errorf("catalog format = %q; want %q", p.Catalog.Format, FormatJSON)
	}
	if got := p.Reviews[0]; got.Name != "batch" || got.Format != FormatCSV || got.DelimiterRune() != ';' {
		t.Errorf("reviews[0] = %+v; want name=batch format=csv delimiter=';'", got)
	}
	if got := p.Reviews[1]; got.Name != "play" || got.Format != FormatJSONL {
		t.Errorf("reviews[1] = %+v; want name=play format=jsonl", got)
	}
	if !p.Output.WantsOutput(OutputParquet) {
		t.Error("expected parquet output to be enabled")
	}
	if p.Workers != 1 {
		t.Errorf("workers = %d; want default 1", p.Workers)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		p    Pipeline
	}{
		{"no reviews", Pipeline{}},
		{"missing path", Pipeline{Reviews: []SourceConfig{{Name: "a", Format: FormatCSV}}}},
		{"unknown format", Pipeline{Reviews: []SourceConfig{{Name: "a", Path: "a.xml", Format: "xml"}}}},
		{"duplicate names", Pipeline{Reviews: []SourceConfig{
			{Name: "a", Path: "a.csv", Format: FormatCSV},
			{Name: "a", Path: "b.csv", Format: FormatCSV},
		}}},
		{"bad output", Pipeline{
			Reviews: []SourceConfig{{Name: "a", Path: "a.csv", Format: FormatCSV}},
			Output:  OutputConfig{Formats: []string{"xlsx"}},
		}},
	}

	for _, tt := range tests {
		if err := tt.p.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: Validate() = %v; want ErrInvalidConfig", tt.name, err)
		}
	}
}

func TestInferFormat(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.csv", FormatCSV},
		{"a.TSV", FormatCSV},
		{"a.jsonl", FormatJSONL},
		{"a.ndjson", FormatJSONL},
		{"a.json", FormatJSON},
		{"a.parquet", ""},
	}
	for _, tt := range tests {
		if got := InferFormat(tt.path); got != tt.want {
			t.Errorf("InferFormat(%q) = %q; want %q", tt.path, got, tt.want)
		}
	}
}

func TestDefaultPipelineIsValid(t *testing.T) {
	if err := DefaultPipeline().Validate(); err != nil {
		t.Errorf("DefaultPipeline().Validate() = %v", err)
	}
}

func TestLoadExamplePipeline(t *testing.T) {
	p, err := LoadPipeline(filepath.Join("..", "pipeline.example.yaml"))
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}
	if len(p.Reviews) != 2 || p.Reviews[1].DelimiterRune() != ';' {
		t.Errorf("reviews = %+v", p.Reviews)
	}
	if p.Catalog.Format != FormatJSON {
		t.Errorf("catalog format = %q; want json", p.Catalog.Format)
	}
	if !p.Output.WantsOutput(OutputParquet) || p.Output.SQLitePath == "" {
		t.Errorf("output = %+v", p.Output)
	}
}
