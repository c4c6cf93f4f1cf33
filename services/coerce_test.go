package services

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseInstalls(t *testing.T) {
	tests := []struct {
		raw  any
		want int64
		ok   bool
	}{
		{"10,000+", 10000, true},
		{"1,000,000,000+", 1000000000, true},
		{"500", 500, true},
		{"5M+", 5000000, true},
		{"1.5K+", 1500, true},
		{json.Number("42"), 42, true},
		{"lots", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{"1.5", 0, false},
	}

	for _, tt := range tests {
		got := ParseInstalls(tt.raw)
		if (got != nil) != tt.ok {
			t.Errorf("ParseInstalls(%v) = %v; want ok=%v", tt.raw, got, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("ParseInstalls(%v) = %d; want %d", tt.raw, *got, tt.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  any
		want float64
		ok   bool
	}{
		{nil, 0, true},
		{"Free", 0, true},
		{"free", 0, true},
		{"$1.99", 1.99, true},
		{"USD 4", 4, true},
		{"$1,200.50", 1200.50, true},
		{"USD 4,99", 4.99, true},
		{"1.234,56 €", 1234.56, true},
		{"$1,299", 1299, true},
		{"2.50 €.", 2.50, true},
		{"$1.2.3", 0, false},
		{json.Number("2.5"), 2.5, true},
		{"ask us", 0, false},
		{-3.0, 0, false},
	}

	for _, tt := range tests {
		got, ok := ParsePrice(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParsePrice(%v) = (%.2f, %v); want (%.2f, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		raw  any
		want int
		ok   bool
	}{
		{"5", 5, true},
		{"1", 1, true},
		{"4.0", 4, true},
		{json.Number("3"), 3, true},
		{"6", 0, false},
		{"0", 0, false},
		{"4.5", 0, false},
		{"five", 0, false},
		{nil, 0, false},
	}

	for _, tt := range tests {
		got, ok := parseScore(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseScore(%v) = (%d, %v); want (%d, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseThumbsUp(t *testing.T) {
	tests := []struct {
		raw  any
		want int
	}{
		{"12", 12},
		{json.Number("7"), 7},
		{nil, 0},
		{"many", 0},
		{"-4", 0},
	}

	for _, tt := range tests {
		if got := parseThumbsUp(tt.raw); got != tt.want {
			t.Errorf("parseThumbsUp(%v) = %d; want %d", tt.raw, got, tt.want)
		}
	}
}

func TestParseTimestampMixedFormats(t *testing.T) {
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		raw  any
		want time.Time
	}{
		{"2024-01-15T10:30:00", want},
		{"2024-01-15 10:30:00", want},
		{"2024-01-15T10:30:00Z", want},
		{"2024-01-15T12:30:00+02:00", want},
		{"2024-01-15 10:30:00+00:00", want},
		{"2024-01-15T10:30:00.000000", want},
		{"01/15/2024 10:30", want},
		{json.Number("1705314600"), want},
		{json.Number("1705314600000"), want},
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, ok := parseTimestamp(tt.raw)
		if !ok || !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%v) = (%v, %v); want %v", tt.raw, got, ok, tt.want)
		}
	}
}

func TestParseTimestampRejects(t *testing.T) {
	for _, raw := range []any{"not-a-date", "", nil, "2024-13-45", json.Number("12")} {
		if got, ok := parseTimestamp(raw); ok {
			t.Errorf("parseTimestamp(%v) = %v; want failure", raw, got)
		}
	}
}
