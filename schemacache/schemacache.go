// Package schemacache provides SchemaStore implementations for the
// schemaregistry caching client: a process-local in-memory store and a
// SQLite-backed store that survives restarts.
package schemacache

import (
	"context"
	"sync"

	"github.com/typeresolve/typeresolve/schemaregistry"
)

// Memory is an in-memory SchemaStore. The caching client already keeps its
// own in-process map, so Memory is mostly useful for pre-seeding fixed
// schemas in tests and offline tooling.
type Memory struct {
	mu      sync.RWMutex
	schemas map[int]schemaregistry.Schema
}

var _ schemaregistry.SchemaStore = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{schemas: map[int]schemaregistry.Schema{}}
}

// GetSchema implements schemaregistry.SchemaStore.
func (m *Memory) GetSchema(_ context.Context, id int) (schemaregistry.Schema, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	schema, ok := m.schemas[id]
	return schema, ok, nil
}

// PutSchema implements schemaregistry.SchemaStore.
func (m *Memory) PutSchema(_ context.Context, schema schemaregistry.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[schema.ID] = schema
	return nil
}

// Len returns the number of stored schemas.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.schemas)
}
