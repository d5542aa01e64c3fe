package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/i474232898/traffic-safety-pipeline/internal/dataset"
)

// FileStore persists one master CSV per dataset kind under a data directory.
// Saves are atomic with respect to readers: content is fully written to a
// temporary file in the same directory and renamed into place, so a reader
// never observes a partial file and a crash mid-write leaves the previously
// committed file intact.
type FileStore struct {
	dir string
}

// NewFileStore returns a file store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the committed master file location for a kind. Dashboard
// readers consume this file directly.
func (s *FileStore) Path(kind string) string {
	return filepath.Join(s.dir, kind+"_master.csv")
}

// Load reads the committed master for the schema's kind. A missing file is
// not an error: the first run starts from an empty dataset.
func (s *FileStore) Load(schema dataset.Schema) (*dataset.Dataset, error) {
	f, err := os.Open(s.Path(schema.Kind))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return dataset.NewDataset(schema), nil
		}
		return nil, &PersistenceError{Kind: schema.Kind, Op: "load", Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, &PersistenceError{Kind: schema.Kind, Op: "load", Err: fmt.Errorf("read header: %w", err)}
	}

	// Map canonical field names to column positions. Extra columns are
	// tolerated so the column set stays append-stable across runs.
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range schema.FieldNames() {
		if _, ok := index[name]; !ok {
			return nil, &PersistenceError{Kind: schema.Kind, Op: "load", Err: fmt.Errorf("missing column %q", name)}
		}
	}

	ds := dataset.NewDataset(schema)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &PersistenceError{Kind: schema.Kind, Op: "load", Err: err}
		}
		fields := make(map[string]string, len(schema.Fields))
		for _, name := range schema.FieldNames() {
			fields[name] = row[index[name]]
		}
		ds.Put(dataset.Record{Key: schema.Key(fields), Fields: fields})
	}
	return ds, nil
}

// Save validates every record against the schema, then commits the dataset
// via write-temp-then-rename. Rows are sorted by identity key so an unchanged
// dataset re-serializes byte-identically.
func (s *FileStore) Save(ds *dataset.Dataset) error {
	schema := ds.Schema
	records := ds.Records()

	for _, rec := range records {
		if err := schema.Validate(rec); err != nil {
			return &PersistenceError{Kind: schema.Kind, Op: "save", Err: err}
		}
	}

	tmp, err := os.CreateTemp(s.dir, "."+schema.Kind+"-*.csv")
	if err != nil {
		return &PersistenceError{Kind: schema.Kind, Op: "save", Err: err}
	}
	tmpName := tmp.Name()

	if err := writeCSV(tmp, schema, records); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Kind: schema.Kind, Op: "save", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Kind: schema.Kind, Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Kind: schema.Kind, Op: "save", Err: err}
	}

	if err := os.Rename(tmpName, s.Path(schema.Kind)); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Kind: schema.Kind, Op: "save", Err: err}
	}
	return nil
}

func writeCSV(f *os.File, schema dataset.Schema, records []dataset.Record) error {
	w := csv.NewWriter(f)
	names := schema.FieldNames()

	if err := w.Write(names); err != nil {
		return err
	}
	row := make([]string, len(names))
	for _, rec := range records {
		for i, name := range names {
			row[i] = rec.Fields[name]
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
