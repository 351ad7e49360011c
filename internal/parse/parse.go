package parse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawRecord is one unvalidated key-value mapping decoded from model output.
type RawRecord map[string]interface{}

// Kind classifies a parse failure.
type Kind string

const (
	// KindMalformedStructure means the text did not decode as JSON at all.
	KindMalformedStructure Kind = "malformed_structure"
	// KindUnexpectedShape means the text decoded, but is not a list of objects.
	KindUnexpectedShape Kind = "unexpected_shape"
)

// Error is a structured parse failure. Raw always carries the original
// model output so the operator can diagnose upstream format drift.
type Error struct {
	Kind Kind
	Raw  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("parse %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// StripWrapping removes leading/trailing markdown code fences (``` or
// ```json) around the payload. Already-clean text passes through unchanged,
// and the function is idempotent: it strips to a fixed point.
func StripWrapping(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		next := stripOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func stripOnce(s string) string {
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = strings.TrimSpace(s[idx+1:])
		} else {
			// Single-line fence like "```json [...] ```".
			s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
			s = strings.TrimSpace(strings.TrimPrefix(s, "json"))
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(s[:len(s)-3])
	}
	return s
}

// Records decodes raw model output into a sequence of RawRecords.
// It never attempts partial recovery: either the whole payload decodes as a
// JSON array of objects, or a typed *Error is returned carrying the raw text.
func Records(raw string) ([]RawRecord, error) {
	clean := StripWrapping(raw)

	var decoded interface{}
	if err := json.Unmarshal([]byte(clean), &decoded); err != nil {
		return nil, &Error{Kind: KindMalformedStructure, Raw: raw, Err: err}
	}

	list, ok := decoded.([]interface{})
	if !ok {
		return nil, &Error{
			Kind: KindUnexpectedShape,
			Raw:  raw,
			Err:  fmt.Errorf("decoded value is %T, want a JSON array", decoded),
		}
	}

	records := make([]RawRecord, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, &Error{
				Kind: KindUnexpectedShape,
				Raw:  raw,
				Err:  fmt.Errorf("element %d is %T, want a JSON object", i, item),
			}
		}
		records = append(records, RawRecord(obj))
	}

	return records, nil
}

// CleanLink normalizes a QR-link extraction reply: fences and surrounding
// whitespace are stripped and only the first line is kept.
func CleanLink(raw string) string {
	s := StripWrapping(raw)
	if idx := strings.IndexAny(s, "\r\n"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
