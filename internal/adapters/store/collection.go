package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/xjson"
)

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Collection is one table of JSON payloads keyed by id.
type Collection[T any] struct {
	store *SQLiteStore
	table Table
	id    func(*T) string
}

func newCollection[T any](s *SQLiteStore, table Table, id func(*T) string) *Collection[T] {
	return &Collection[T]{store: s, table: table, id: id}
}

// Save inserts or replaces the record. Replacing keeps the original row
// position, so List order is insertion order.
func (c *Collection[T]) Save(ctx context.Context, record *T) error {
	id := c.id(record)
	if id == "" {
		return core.ErrValidation(core.CodeInvalidState, fmt.Sprintf("%s record has no id", c.table))
	}
	payload, err := xjson.Marshal(record)
	if err != nil {
		return core.ErrPersistence("encoding "+string(c.table), err)
	}

	// #nosec G202 -- table names are package constants
	query := `
		INSERT INTO ` + string(c.table) + ` (id, payload) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload
	`
	err = c.store.retryWrite(ctx, "save "+string(c.table), func() error {
		_, execErr := c.store.db.ExecContext(ctx, query, id, string(payload))
		return execErr
	})
	if err != nil {
		return core.ErrPersistence("saving "+string(c.table), err)
	}
	return nil
}

// Get returns the record or nil if it does not exist.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	var payload string
	// #nosec G202 -- table names are package constants
	err := c.store.readDB.QueryRowContext(ctx,
		"SELECT payload FROM "+string(c.table)+" WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, core.ErrPersistence("reading "+string(c.table), err)
	}
	return c.decode(payload)
}

// List returns all records in insertion order.
func (c *Collection[T]) List(ctx context.Context) ([]*T, error) {
	// #nosec G202 -- table names are package constants
	return c.query(ctx, "SELECT payload FROM "+string(c.table)+" ORDER BY rowid")
}

// Find returns records whose top-level payload field equals value.
func (c *Collection[T]) Find(ctx context.Context, field, value string) ([]*T, error) {
	if !fieldPattern.MatchString(field) {
		return nil, core.ErrValidation(core.CodeInvalidField, fmt.Sprintf("invalid field name %q", field))
	}
	// The path is inlined so the expression indexes match.
	// #nosec G202 -- field is validated above, table names are constants
	query := "SELECT payload FROM " + string(c.table) +
		" WHERE json_extract(payload, '$." + field + "') = ? ORDER BY rowid"
	return c.query(ctx, query, value)
}

// Delete removes the record. Missing ids are ignored.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	// #nosec G202 -- table names are package constants
	query := "DELETE FROM " + string(c.table) + " WHERE id = ?"
	err := c.store.retryWrite(ctx, "delete "+string(c.table), func() error {
		_, execErr := c.store.db.ExecContext(ctx, query, id)
		return execErr
	})
	if err != nil {
		return core.ErrPersistence("deleting "+string(c.table), err)
	}
	return nil
}

func (c *Collection[T]) query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	rows, err := c.store.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.ErrPersistence("querying "+string(c.table), err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, core.ErrPersistence("scanning "+string(c.table), err)
		}
		record, err := c.decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrPersistence("iterating "+string(c.table), err)
	}
	return out, nil
}

func (c *Collection[T]) decode(payload string) (*T, error) {
	var record T
	if err := xjson.Unmarshal([]byte(payload), &record); err != nil {
		return nil, core.ErrPersistence("decoding "+string(c.table), err)
	}
	return &record, nil
}

var _ core.Repository[core.WorkflowRecord] = (*Collection[core.WorkflowRecord])(nil)
