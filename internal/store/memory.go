package store

import (
	"sync"

	"github.com/i474232898/traffic-safety-pipeline/internal/dataset"
)

// MemoryStore is a concurrency-safe in-memory Store implementation, used in
// tests and anywhere durable persistence is not wanted.
type MemoryStore struct {
	mu sync.RWMutex

	// key: dataset kind, value: committed dataset
	data map[string]*dataset.Dataset
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*dataset.Dataset),
	}
}

// Load returns a copy of the committed dataset for the schema's kind, or an
// empty dataset when nothing has been saved yet.
func (s *MemoryStore) Load(schema dataset.Schema) (*dataset.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.data[schema.Kind]
	if !ok {
		return dataset.NewDataset(schema), nil
	}
	return copyDataset(ds), nil
}

// Save commits a copy of the dataset under its kind.
func (s *MemoryStore) Save(ds *dataset.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[ds.Schema.Kind] = copyDataset(ds)
	return nil
}

func copyDataset(ds *dataset.Dataset) *dataset.Dataset {
	c := dataset.NewDataset(ds.Schema)
	for _, rec := range ds.Records() {
		c.Put(rec)
	}
	return c
}
