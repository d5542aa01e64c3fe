package dataset

import (
	"fmt"
	"strings"
)

// SchemaError describes one raw record that could not be normalized: a
// missing required field or a value that failed type coercion. The record is
// dropped and the batch continues.
type SchemaError struct {
	Kind   string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", e.Kind, e.Field, e.Reason)
}

// Normalize converts a raw batch into canonical records per the schema. Raw
// column names are lowercased, trimmed, and mapped through the schema's
// rename table before coercion. One malformed record does not block the rest:
// it is dropped and reported in the returned error slice.
func Normalize(schema Schema, raw []RawRecord) ([]Record, []error) {
	records := make([]Record, 0, len(raw))
	var errs []error

	for _, rr := range raw {
		rec, err := normalizeOne(schema, rr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

func normalizeOne(schema Schema, raw RawRecord) (Record, error) {
	byName := canonicalColumns(schema, raw)

	fields := make(map[string]string, len(schema.Fields))
	for _, f := range schema.Fields {
		v, ok := byName[f.Name]
		if !ok || v == nil || v == "" {
			if f.Required {
				return Record{}, &SchemaError{Kind: schema.Kind, Field: f.Name, Reason: "missing required field"}
			}
			fields[f.Name] = f.Default
			continue
		}
		cv, err := coerce(f, v)
		if err != nil {
			if f.Required {
				return Record{}, &SchemaError{Kind: schema.Kind, Field: f.Name, Reason: err.Error()}
			}
			fields[f.Name] = f.Default
			continue
		}
		fields[f.Name] = cv
	}

	if schema.Derive != nil {
		schema.Derive(raw, fields)
	}

	for _, name := range schema.KeyFields {
		if fields[name] == "" {
			return Record{}, &SchemaError{Kind: schema.Kind, Field: name, Reason: "empty identity key field"}
		}
	}

	return Record{Key: schema.Key(fields), Fields: fields}, nil
}

// canonicalColumns builds a canonical-name view of a raw record: column names
// are lowercased and trimmed, then mapped through the schema's rename table.
func canonicalColumns(schema Schema, raw RawRecord) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		name := strings.ToLower(strings.TrimSpace(k))
		if canon, ok := schema.Rename[name]; ok {
			name = canon
		}
		out[name] = v
	}
	return out
}
