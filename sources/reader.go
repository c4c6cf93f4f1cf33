// Package sources decodes physical inputs into raw rows without
// interpreting their meaning.
package sources

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"app-reviews-pipeline/config"
	"app-reviews-pipeline/models"
)

var (
	// ErrSourceMissing means the configured file does not exist.
	ErrSourceMissing = errors.New("source missing")
	// ErrUnknownFormat means no decoder exists for the configured format.
	ErrUnknownFormat = errors.New("unknown source format")
)

const maxLineBytes = 16 * 1024 * 1024

// Batch is everything decoded from one source.
type Batch struct {
	Source  config.SourceConfig
	Rows    []models.RawRow
	Lines   []int // 1-based physical position of each row
	Skipped int   // units that failed to decode
}

// Open reads one configured source from disk.
func Open(src config.SourceConfig) (*Batch, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, src.Path)
		}
		return nil, fmt.Errorf("reader: open %q: %w", src.Path, err)
	}
	defer f.Close()

	return Read(src, f)
}

// Read decodes r according to src.Format.
func Read(src config.SourceConfig, r io.Reader) (*Batch, error) {
	b := &Batch{Source: src}
	var err error
	switch src.Format {
	case config.FormatCSV:
		err = readCSV(b, r, src.DelimiterRune())
	case config.FormatJSONL:
		err = readJSONL(b, r)
	case config.FormatJSON:
		err = readJSONDocument(b, r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, src.Format)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Batch) add(row models.RawRow, line int) {
	b.Rows = append(b.Rows, row)
	b.Lines = append(b.Lines, line)
}

// readCSV expects a header row. Rows whose field count differs from the
// header are skipped. Empty cells become nil.
//
// Records are split on physical lines before parsing so that a broken quote
// costs exactly one record: a quoted field may span lines, but when the
// line after an unterminated quote is itself a complete record, or the input
// ends, the unterminated record is skipped and reading resumes there.
func readCSV(b *Batch, r io.Reader, delim rune) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reader: csv: %w", err)
	}
	if len(lines) > 0 {
		lines[0] = strings.TrimPrefix(lines[0], "\ufeff")
	}

	next := 0
	var header []string
	for next < len(lines) && header == nil {
		text, start, ok := nextCSVRecord(lines, &next, nil)
		if text == "" && ok {
			continue
		}
		if !ok {
			return fmt.Errorf("reader: csv header: unterminated quote on line %d", start+1)
		}
		rec, err := parseCSVRecord(text, delim)
		if err != nil {
			return fmt.Errorf("reader: csv header: %w", err)
		}
		header = rec
	}
	if header == nil {
		return nil
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	isRecord := func(line string) bool {
		rec, err := parseCSVRecord(line, delim)
		return err == nil && len(rec) == len(header)
	}

	for next < len(lines) {
		text, start, ok := nextCSVRecord(lines, &next, isRecord)
		if ok && text == "" {
			continue
		}
		if !ok {
			b.Skipped++
			continue
		}
		rec, err := parseCSVRecord(text, delim)
		if err != nil || len(rec) != len(header) {
			b.Skipped++
			continue
		}

		row := make(models.RawRow, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if v := rec[i]; v != "" {
				row[col] = v
			} else {
				row[col] = nil
			}
		}
		b.add(row, start+1)
	}
	return nil
}

// nextCSVRecord joins lines from *next until the quotes balance. Blank
// lines outside a record yield "". ok is false for an unterminated record,
// which ends early when isRecord accepts the following line.
func nextCSVRecord(lines []string, next *int, isRecord func(string) bool) (text string, start int, ok bool) {
	start = *next
	text = lines[start]
	*next++
	if text == "" {
		return "", start, true
	}

	for strings.Count(text, `"`)%2 == 1 {
		if *next >= len(lines) {
			return text, start, false
		}
		line := lines[*next]
		if isRecord != nil && strings.Count(line, `"`)%2 == 0 && isRecord(line) {
			return text, start, false
		}
		text += "\n" + line
		*next++
	}
	return text, start, true
}

// parseCSVRecord parses exactly one record with strict quoting.
func parseCSVRecord(text string, delim rune) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = delim
	cr.FieldsPerRecord = -1

	rec, err := cr.Read()
	if err != nil {
		return nil, err
	}
	if _, err := cr.Read(); err != io.EOF {
		return nil, errors.New("more than one record")
	}
	return rec, nil
}

// readJSONL decodes one JSON object per line. Blank lines are ignored.
func readJSONL(b *Batch, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		row, ok := decodeObject(raw)
		if !ok {
			b.Skipped++
			continue
		}
		b.add(row, line)
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			// The scanner cannot resume past an oversized line.
			b.Skipped++
			return nil
		}
		return fmt.Errorf("reader: jsonl: %w", err)
	}
	return nil
}

// readJSONDocument decodes a top-level array of objects. Elements that are
// not objects are skipped; a syntax error ends the read keeping what was
// decoded so far.
func readJSONDocument(b *Batch, r io.Reader) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reader: json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("reader: json: expected top-level array")
	}

	idx := 0
	for dec.More() {
		idx++
		var elem json.RawMessage
		if err := dec.Decode(&elem); err != nil {
			b.Skipped++
			return nil
		}
		row, ok := decodeObject(elem)
		if !ok {
			b.Skipped++
			continue
		}
		b.add(row, idx)
	}
	return nil
}

func decodeObject(raw []byte) (models.RawRow, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row map[string]any
	if err := dec.Decode(&row); err != nil || row == nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return models.RawRow(row), true
}
