package services

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// installsRegexp captures "10,000+", "1M+", "500 000" style counts.
	installsRegexp = regexp.MustCompile(`^([\d][\d,\s_.]*)\s*([kKmMbB])?\s*\+?$`)
	// priceRegexp captures the numeric part of "$1.99", "USD 4,99", "2.50 €".
	priceRegexp = regexp.MustCompile(`\d[\d.,]*`)
	// decimalCommaRegexp matches amounts whose last separator is a two-digit
	// decimal comma: "4,99", "1.234,56".
	decimalCommaRegexp = regexp.MustCompile(`,\d{2}$`)
)

// Timestamp layouts accepted in review sources, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"02 Jan 2006 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC1123Z,
	time.RFC1123,
}

// asString returns a trimmed textual view of a scalar raw value.
func asString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// asFloat parses a numeric raw value. NaN and infinities are rejected.
func asFloat(v any) (float64, bool) {
	s, ok := asString(v)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// asInt parses an integral raw value; "12.0" is accepted, "12.5" is not.
func asInt(v any) (int64, bool) {
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// parseScore accepts integral values in [1,5] only.
func parseScore(v any) (int, bool) {
	n, ok := asInt(v)
	if !ok || n < 1 || n > 5 {
		return 0, false
	}
	return int(n), true
}

// parseThumbsUp never fails: missing, negative or unparsable means 0.
func parseThumbsUp(v any) int {
	n, ok := asInt(v)
	if !ok || n < 0 {
		return 0
	}
	return int(n)
}

// parseTimestamp tries every known layout, then unix seconds/millis.
// Values carrying an offset are converted to UTC; naive values are read as UTC.
func parseTimestamp(v any) (time.Time, bool) {
	s, ok := asString(v)
	if !ok {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		switch {
		case n >= 1e12 && n < 1e14:
			return time.UnixMilli(n).UTC(), true
		case n >= 1e8 && n < 1e11:
			return time.Unix(n, 0).UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseInstalls converts free-text install counts ("10,000+", "5M+") to an
// integer. Unparsable values yield nil.
func ParseInstalls(v any) *int64 {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil && i >= 0 {
			return &i
		}
	}
	s, ok := asString(v)
	if !ok {
		return nil
	}

	m := installsRegexp.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	digits := strings.NewReplacer(",", "", " ", "", "_", "").Replace(m[1])

	mult := 1.0
	switch strings.ToLower(m[2]) {
	case "k":
		mult = 1e3
	case "m":
		mult = 1e6
	case "b":
		mult = 1e9
	}

	if mult == 1 {
		if strings.Contains(digits, ".") {
			return nil
		}
		i, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return nil
		}
		return &i
	}

	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil
	}
	i := int64(math.Round(f * mult))
	return &i
}

// ParsePrice converts a price to a float. Absent values and "Free" are 0.
// The second result is false when a value was present but unparsable, which
// callers treat as "no value".
func ParsePrice(v any) (float64, bool) {
	if v == nil {
		return 0, true
	}
	if f, ok := v.(float64); ok {
		return nonNegative(f)
	}
	s, ok := asString(v)
	if !ok {
		return 0, true
	}
	if strings.EqualFold(s, "free") {
		return 0, true
	}

	match := strings.TrimRight(priceRegexp.FindString(s), ".,")
	if match == "" {
		return 0, false
	}
	if decimalCommaRegexp.MatchString(match) {
		match = strings.ReplaceAll(match, ".", "")
		match = strings.Replace(match, ",", ".", 1)
	} else {
		match = strings.ReplaceAll(match, ",", "")
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return nonNegative(f)
}

func nonNegative(f float64) (float64, bool) {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
