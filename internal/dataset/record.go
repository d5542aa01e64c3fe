package dataset

import "sort"

// RawRecord is one record as delivered by a fetch source: an untrusted
// mapping of source column name to value.
type RawRecord map[string]any

// Record is the canonical form of a record: a fixed set of canonical field
// values plus the identity key derived from them. Values are stored in their
// canonical string encoding so that equality checks and CSV round-trips are
// exact.
type Record struct {
	Key    string
	Fields map[string]string
}

// Equal reports whether two records carry identical field values.
func (r Record) Equal(other Record) bool {
	if len(r.Fields) != len(other.Fields) {
		return false
	}
	for k, v := range r.Fields {
		if ov, ok := other.Fields[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Dataset is an unordered collection of canonical records for one kind, with
// identity keys unique within it.
type Dataset struct {
	Schema  Schema
	records map[string]Record
}

// NewDataset returns an empty dataset for the given schema.
func NewDataset(schema Schema) *Dataset {
	return &Dataset{
		Schema:  schema,
		records: make(map[string]Record),
	}
}

// Len returns the number of records in the dataset.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Get returns the record stored under key, if any.
func (d *Dataset) Get(key string) (Record, bool) {
	r, ok := d.records[key]
	return r, ok
}

// Put inserts or replaces the record stored under its key.
func (d *Dataset) Put(r Record) {
	d.records[r.Key] = r
}

// Records returns all records sorted by identity key. The deterministic order
// makes repeated serialization of an unchanged dataset byte-identical.
func (d *Dataset) Records() []Record {
	out := make([]Record, 0, len(d.records))
	for _, r := range d.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (d *Dataset) clone() *Dataset {
	c := NewDataset(d.Schema)
	for k, r := range d.records {
		c.records[k] = r
	}
	return c
}
