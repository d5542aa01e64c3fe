package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/i474232898/traffic-safety-pipeline/internal/dataset"
)

func testSchema() dataset.Schema {
	return dataset.Schema{
		Kind: "readings",
		Fields: []dataset.Field{
			{Name: "id", Type: dataset.FieldString, Required: true},
			{Name: "ts", Type: dataset.FieldTime, Required: true},
			{Name: "value", Type: dataset.FieldInt, Default: "0"},
		},
		KeyFields: []string{"id"},
		TimeField: "ts",
	}
}

func testRecord(schema dataset.Schema, id, ts, value string) dataset.Record {
	fields := map[string]string{"id": id, "ts": ts, "value": value}
	return dataset.Record{Key: schema.Key(fields), Fields: fields}
}

func TestFileStoreRoundTrip(t *testing.T) {
	schema := testSchema()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ds := dataset.NewDataset(schema)
	ds.Put(testRecord(schema, "2", "2024-01-02T00:00:00Z", "7"))
	ds.Put(testRecord(schema, "1", "2024-01-01T00:00:00Z", "5"))

	if err := fs.Save(ds); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := fs.Load(schema)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", loaded.Len())
	}
	rec, ok := loaded.Get("1")
	if !ok || rec.Fields["value"] != "5" {
		t.Fatalf("record 1 not round-tripped: %+v", rec)
	}
}

func TestFileStoreLoadMissingReturnsEmpty(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ds, err := fs.Load(testSchema())
	if err != nil {
		t.Fatalf("load of absent master must not error, got %v", err)
	}
	if ds.Len() != 0 {
		t.Fatalf("expected empty dataset, got %d records", ds.Len())
	}
}

func TestFileStoreSerializationDeterministic(t *testing.T) {
	schema := testSchema()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ds := dataset.NewDataset(schema)
	ds.Put(testRecord(schema, "b", "2024-01-02T00:00:00Z", "7"))
	ds.Put(testRecord(schema, "a", "2024-01-01T00:00:00Z", "5"))
	ds.Put(testRecord(schema, "c", "2024-01-03T00:00:00Z", "9"))

	if err := fs.Save(ds); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	first, err := os.ReadFile(fs.Path(schema.Kind))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	// Loading and re-saving unchanged content must produce identical bytes.
	loaded, err := fs.Load(schema)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := fs.Save(loaded); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	second, err := os.ReadFile(fs.Path(schema.Kind))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if string(first) != string(second) {
		t.Fatalf("unchanged dataset did not re-serialize byte-identically")
	}
}

func TestFileStoreSaveValidatesSchema(t *testing.T) {
	schema := testSchema()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	good := dataset.NewDataset(schema)
	good.Put(testRecord(schema, "1", "2024-01-01T00:00:00Z", "5"))
	if err := fs.Save(good); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	committed, err := os.ReadFile(fs.Path(schema.Kind))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	bad := dataset.NewDataset(schema)
	bad.Put(testRecord(schema, "2", "2024-01-02T00:00:00Z", "not-a-number"))

	err = fs.Save(bad)
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}

	// The prior committed file is untouched.
	after, err := os.ReadFile(fs.Path(schema.Kind))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(after) != string(committed) {
		t.Fatalf("failed save modified the committed file")
	}
}

func TestFileStoreInterruptedWriteLeavesCommitted(t *testing.T) {
	schema := testSchema()
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ds := dataset.NewDataset(schema)
	ds.Put(testRecord(schema, "1", "2024-01-01T00:00:00Z", "5"))
	if err := fs.Save(ds); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Simulate a crash mid-write: a truncated temp file that was never
	// renamed into place.
	tmp := filepath.Join(dir, "."+schema.Kind+"-crash.csv")
	if err := os.WriteFile(tmp, []byte("id,ts,val"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	loaded, err := fs.Load(schema)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("expected the committed record, got %d records", loaded.Len())
	}
	rec, ok := loaded.Get("1")
	if !ok || rec.Fields["value"] != "5" {
		t.Fatalf("committed record corrupted: %+v", rec)
	}
}

func TestFileStoreKindsAreIsolated(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	weather := dataset.WeatherSchema()
	collisions := dataset.CollisionsSchema()

	wds := dataset.NewDataset(weather)
	fields := map[string]string{
		"borough": "QUEENS", "observed_at": "2024-01-01T05:00:00Z",
		"temperature_c": "1.5", "precipitation_mm": "0", "wind_speed_kmh": "10",
		"condition": "CLEAR", "severity": "LIGHT",
	}
	wds.Put(dataset.Record{Key: weather.Key(fields), Fields: fields})

	if err := fs.Save(wds); err != nil {
		t.Fatalf("save weather failed: %v", err)
	}

	// Saving one kind never touches another kind's master.
	cds, err := fs.Load(collisions)
	if err != nil {
		t.Fatalf("load collisions failed: %v", err)
	}
	if cds.Len() != 0 {
		t.Fatalf("collisions master unexpectedly non-empty")
	}
	if _, err := os.Stat(fs.Path(collisions.Kind)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("collisions master file should not exist")
	}
}
