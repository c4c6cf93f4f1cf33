package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for unusable pipeline settings.
var ErrInvalidConfig = errors.New("invalid pipeline config")

// Source formats understood by the reader.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
)

// Output formats understood by the file sinks.
const (
	OutputCSV     = "csv"
	OutputParquet = "parquet"
)

// Pipeline describes the input/output locations of one reconciliation run.
type Pipeline struct {
	Catalog SourceConfig   `yaml:"catalog"`
	Reviews []SourceConfig `yaml:"reviews"`
	Output  OutputConfig   `yaml:"output"`
	Workers int            `yaml:"workers"`
}

// SourceConfig is one physical input. Reviews are ingested in declaration order.
type SourceConfig struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	Format    string `yaml:"format"`
	Delimiter string `yaml:"delimiter"`
}

// OutputConfig selects where the reconciled tables go.
type OutputConfig struct {
	Dir             string   `yaml:"dir"`
	Formats         []string `yaml:"formats"`
	SQLitePath      string   `yaml:"sqlite_path"`
	Postgres        bool     `yaml:"postgres"`
	MetricsTextfile string   `yaml:"metrics_textfile"`
}

// DefaultPipeline mirrors the data/raw → data/processed layout.
func DefaultPipeline() *Pipeline {
	return &Pipeline{
		Catalog: SourceConfig{Name: "apps_metadata", Path: "data/raw/apps_metadata.json", Format: FormatJSON},
		Reviews: []SourceConfig{
			{Name: "apps_reviews", Path: "data/raw/apps_reviews.jsonl", Format: FormatJSONL},
			{Name: "reviews_batch", Path: "data/raw/reviews_batch.csv", Format: FormatCSV, Delimiter: ";"},
		},
		Output: OutputConfig{
			Dir:     "data/processed",
			Formats: []string{OutputCSV},
		},
		Workers: 2,
	}
}

// LoadPipeline reads a pipeline description from a YAML file.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline config: %w", err)
	}

	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	p.applyDefaults()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Pipeline) applyDefaults() {
	if p.Workers < 1 {
		p.Workers = 1
	}
	if p.Output.Dir == "" {
		p.Output.Dir = "data/processed"
	}
	if len(p.Output.Formats) == 0 {
		p.Output.Formats = []string{OutputCSV}
	}
	p.Catalog.fill("catalog")
	for i := range p.Reviews {
		p.Reviews[i].fill(fmt.Sprintf("reviews_%d", i+1))
	}
}

func (s *SourceConfig) fill(fallbackName string) {
	if s.Path == "" {
		return
	}
	if s.Name == "" {
		base := filepath.Base(s.Path)
		s.Name = strings.TrimSuffix(base, filepath.Ext(base))
		if s.Name == "" {
			s.Name = fallbackName
		}
	}
	if s.Format == "" {
		s.Format = InferFormat(s.Path)
	}
	s.Format = strings.ToLower(s.Format)
}

// Validate validates the configuration.
func (p *Pipeline) Validate() error {
	if len(p.Reviews) == 0 {
		return fmt.Errorf("%w: at least one review source is required", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(p.Reviews))
	for i, s := range p.Reviews {
		if s.Path == "" {
			return fmt.Errorf("%w: reviews[%d]: path is required", ErrInvalidConfig, i)
		}
		if !validFormat(s.Format) {
			return fmt.Errorf("%w: reviews[%d]: unknown format %q", ErrInvalidConfig, i, s.Format)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate source name %q", ErrInvalidConfig, s.Name)
		}
		seen[s.Name] = true
		if len([]rune(s.Delimiter)) > 1 {
			return fmt.Errorf("%w: reviews[%d]: delimiter must be one character", ErrInvalidConfig, i)
		}
	}

	if p.Catalog.Path != "" && !validFormat(p.Catalog.Format) {
		return fmt.Errorf("%w: catalog: unknown format %q", ErrInvalidConfig, p.Catalog.Format)
	}

	for _, f := range p.Output.Formats {
		if f != OutputCSV && f != OutputParquet {
			return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, f)
		}
	}
	return nil
}

// WantsOutput reports whether the given file output format is enabled.
func (o OutputConfig) WantsOutput(format string) bool {
	for _, f := range o.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// InferFormat guesses a source format from its file extension.
func InferFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".json":
		return FormatJSON
	default:
		return ""
	}
}

func validFormat(f string) bool {
	return f == FormatCSV || f == FormatJSONL || f == FormatJSON
}

// DelimiterRune returns the CSV delimiter, ',' by default and tab for .tsv files.
func (s SourceConfig) DelimiterRune() rune {
	if s.Delimiter != "" {
		return []rune(s.Delimiter)[0]
	}
	if strings.EqualFold(filepath.Ext(s.Path), ".tsv") {
		return '\t'
	}
	return ','
}
