package core

// convert.go turns raw source text into typed values.
//
// The source export is untyped text. Values written as plain JSON number
// literals become Number and keep their exact text, the usual yes/no literals
// become Bool, everything else stays String. Text such as "007", "+5" or ".5"
// stays String: turning it into a number would change the value the source
// holds.
// Empty text produces no value at all so that the field is omitted.

import (
	"regexp"
	"strings"
	"time"
)

// numericRegex matches the JSON number grammar: integers without leading
// zeros, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)

// Timestamp layouts seen in source exports, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"20060102150405",
	"2006-01-02",
	"20060102",
	"2-Jan-2006",
	"02-Jan-2006",
	"2-Jan-06",
	"02-Jan-06",
}

// CoerceLeaf converts the text content of a leaf element to a typed value.
// Returns nil for empty or whitespace-only input.
func CoerceLeaf(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if numericRegex.MatchString(s) {
		return Number(s)
	}

	if b, ok := parseBoolLiteral(s); ok {
		return Bool(b)
	}

	return String(s)
}

// parseBoolLiteral recognizes the boolean spellings used by the source.
// Numeric 1/0 are not accepted here; they are numbers.
func parseBoolLiteral(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "yes", "true":
		return true, true
	case "no", "false":
		return false, true
	}
	return false, false
}

// ParseTimestamp parses a source timestamp in any of the known layouts.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatSourceDate renders a date the way the source expects in request variables.
func FormatSourceDate(t time.Time) string {
	return t.Format("20060102")
}
