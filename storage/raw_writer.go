package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"app-reviews-pipeline/models"
)

// Raw acquisition file names inside the raw directory.
const (
	RawAppsFile    = "apps_metadata.json"
	RawReviewsFile = "apps_reviews.jsonl"
)

// JSONRawWriter stores acquired apps as one JSON document and reviews as
// JSON lines, matching what the catalog and review readers accept.
type JSONRawWriter struct {
	mu  sync.Mutex
	dir string
}

func NewJSONRawWriter(dir string) (*JSONRawWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("raw: create dir: %w", err)
	}
	return &JSONRawWriter{dir: dir}, nil
}

func (j *JSONRawWriter) WriteApps(apps []*models.RawApp) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if apps == nil {
		apps = []*models.RawApp{}
	}
	data, err := json.MarshalIndent(apps, "", "  ")
	if err != nil {
		return fmt.Errorf("raw: marshal apps: %w", err)
	}
	return j.replace(RawAppsFile, func(w *bufio.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

func (j *JSONRawWriter) WriteReviews(reviews []*models.RawReview) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.replace(RawReviewsFile, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, r := range reviews {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *JSONRawWriter) replace(name string, write func(*bufio.Writer) error) error {
	f, err := os.CreateTemp(j.dir, tmpFilePrefix+name+"-*")
	if err != nil {
		return fmt.Errorf("raw: create temp for %s: %w", name, err)
	}
	tmp := f.Name()

	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("raw: write %s: %w", name, err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("raw: flush %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("raw: close %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(j.dir, name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("raw: commit %s: %w", name, err)
	}
	return nil
}

func (j *JSONRawWriter) Close() error {
	return nil
}
