package schemacache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/typeresolve/typeresolve/schemaregistry"
)

// SQLiteStore is a SchemaStore backed by a SQLite file. Schema ids are
// immutable, so rows are only ever inserted; a restart re-reads what earlier
// runs fetched.
type SQLiteStore struct {
	db *sql.DB
}

var _ schemaregistry.SchemaStore = (*SQLiteStore)(nil)

const schemasTable = `
	CREATE TABLE IF NOT EXISTS schemas (
		id INTEGER PRIMARY KEY,
		schema_type TEXT NOT NULL,
		schema TEXT NOT NULL,
		refs TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)
`

// OpenSQLite opens (creating if necessary) a schema store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Set pragmas for performance
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemasTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schemas table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetSchema implements schemaregistry.SchemaStore.
func (s *SQLiteStore) GetSchema(ctx context.Context, id int) (schemaregistry.Schema, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT schema_type, schema, refs
		FROM schemas
		WHERE id = ?
	`, id)

	var schemaType, schema, refs string
	if err := row.Scan(&schemaType, &schema, &refs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schemaregistry.Schema{}, false, nil
		}
		return schemaregistry.Schema{}, false, fmt.Errorf("read schema %d: %w", id, err)
	}

	var references []schemaregistry.Reference
	if err := json.Unmarshal([]byte(refs), &references); err != nil {
		return schemaregistry.Schema{}, false, fmt.Errorf("decode references of schema %d: %w", id, err)
	}

	return schemaregistry.Schema{
		ID:         id,
		Type:       schemaregistry.SchemaType(schemaType),
		Schema:     schema,
		References: references,
	}, true, nil
}

// PutSchema implements schemaregistry.SchemaStore. Storing an id that is
// already present is a no-op.
func (s *SQLiteStore) PutSchema(ctx context.Context, schema schemaregistry.Schema) error {
	refs, err := json.Marshal(schema.References)
	if err != nil {
		return fmt.Errorf("encode references of schema %d: %w", schema.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schemas (id, schema_type, schema, refs)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, schema.ID, string(schema.Type), schema.Schema, string(refs))
	if err != nil {
		return fmt.Errorf("store schema %d: %w", schema.ID, err)
	}
	return nil
}

// Count returns the number of stored schemas.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schemas").Scan(&n); err != nil {
		return 0, fmt.Errorf("count schemas: %w", err)
	}
	return n, nil
}
