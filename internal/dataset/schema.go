package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldType enumerates the value types a canonical field can hold.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldFloat
	FieldTime
)

// Field declares one column of a canonical schema.
type Field struct {
	Name     string
	Type     FieldType
	Required bool

	// Default is the canonical value used when an optional field is absent
	// from a raw record.
	Default string
}

// Schema declares the canonical field set for one dataset kind, the rule for
// deriving a record's identity key, and how raw source columns map onto
// canonical names.
type Schema struct {
	Kind string

	// Fields in declared order; this order is also the persisted column order.
	Fields []Field

	// KeyFields is the ordered list of canonical fields whose values are
	// joined to form the identity key. Two records with equal keys are the
	// same logical record.
	KeyFields []string

	// TimeField names the canonical timestamp field used for window queries
	// and date-range summaries.
	TimeField string

	// Rename maps raw source column names to canonical field names.
	Rename map[string]string

	// Derive, when set, runs after field coercion and before key derivation.
	// It may consult raw columns that are not part of the canonical schema
	// (e.g. snowfall readings folded into a condition code).
	Derive func(raw RawRecord, fields map[string]string)
}

// FieldNames returns the canonical column names in declared order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

func (s Schema) field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Key derives the identity key from canonical field values. The same field
// values always yield the same key across runs.
func (s Schema) Key(fields map[string]string) string {
	parts := make([]string, len(s.KeyFields))
	for i, name := range s.KeyFields {
		parts[i] = fields[name]
	}
	return strings.Join(parts, "|")
}

// Validate checks that a record carries exactly the schema's fields, that
// every value parses as its declared type, and that the record's key matches
// the one derived from its fields.
func (s Schema) Validate(r Record) error {
	for _, f := range s.Fields {
		v, ok := r.Fields[f.Name]
		if !ok {
			return fmt.Errorf("record %q: missing field %q", r.Key, f.Name)
		}
		if err := checkCanonical(f, v); err != nil {
			return fmt.Errorf("record %q: field %q: %w", r.Key, f.Name, err)
		}
	}
	if len(r.Fields) != len(s.Fields) {
		return fmt.Errorf("record %q: has %d fields, schema declares %d", r.Key, len(r.Fields), len(s.Fields))
	}
	if got := s.Key(r.Fields); got != r.Key {
		return fmt.Errorf("record key %q does not match derived key %q", r.Key, got)
	}
	return nil
}

// checkCanonical verifies that v is already in canonical form for the field
// type. Canonical values round-trip through the CSV layer unchanged.
func checkCanonical(f Field, v string) error {
	switch f.Type {
	case FieldInt:
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
	case FieldFloat:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("not a number: %q", v)
		}
	case FieldTime:
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			return fmt.Errorf("not an RFC3339 timestamp: %q", v)
		}
	}
	return nil
}

// coerce converts a raw value into canonical form for the field type.
func coerce(f Field, v any) (string, error) {
	switch f.Type {
	case FieldString:
		return strings.TrimSpace(stringify(v)), nil
	case FieldInt:
		n, err := toFloat(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(n), 10), nil
	case FieldFloat:
		n, err := toFloat(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	case FieldTime:
		t, err := toTime(v)
		if err != nil {
			return "", err
		}
		return t.UTC().Format(time.RFC3339), nil
	}
	return "", fmt.Errorf("unknown field type %d", f.Type)
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, fmt.Errorf("empty numeric value")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("unparsable number %q", s)
		}
		return f, nil
	}
	return 0, fmt.Errorf("unsupported numeric value %T", v)
}

// timeLayouts covers the timestamp shapes the sources deliver: RFC3339,
// Socrata floating timestamps, and bare date/hour forms from Open-Meteo.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp value %T", v)
}
