package store

import (
	"fmt"

	"github.com/i474232898/traffic-safety-pipeline/internal/dataset"
)

// Store loads and durably persists one master dataset per kind.
type Store interface {
	// Load returns the committed dataset for the schema's kind, or an empty
	// dataset with that schema when no prior state exists.
	Load(schema dataset.Schema) (*dataset.Dataset, error)

	// Save commits the dataset, replacing any prior state for its kind.
	Save(ds *dataset.Dataset) error
}

// PersistenceError wraps a failed load or save. The prior committed state is
// always left untouched when a save fails.
type PersistenceError struct {
	Kind string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
