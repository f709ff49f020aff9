// Package sqlite is a single-process DocumentStore persisted to one SQLite file.
// Documents are JSON text; live queries re-run after every local write.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"skynotes/internal/domain"
	"skynotes/internal/domain/repositories"
	"skynotes/internal/repository/changefeed"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	fields TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents(collection);
`

// Same fixed-width layout the Postgres store writes, so ordering is lexical.
const serverTimestampSQL = `strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`

type Store struct {
	db     *sql.DB
	feed   *changefeed.Feed
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.feed = changefeed.New(s.query, logger)
	return s, nil
}

func (s *Store) Create(ctx context.Context, collection string, fields repositories.Fields) (string, error) {
	expr, args, err := fieldsExpr("?", fields)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	id := uuid.NewString()
	query := `INSERT INTO documents (id, collection, fields) VALUES (?, ?, ` + expr + `)`
	if _, err := s.db.ExecContext(ctx, query, append([]any{id, collection}, args...)...); err != nil {
		return "", fmt.Errorf("create %s: %w", collection, err)
	}

	s.feed.Notify(collection)
	return id, nil
}

// CreateAll inserts every document in one transaction.
func (s *Store) CreateAll(ctx context.Context, collection string, docs []repositories.Fields) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(docs))
	for _, fields := range docs {
		expr, args, err := fieldsExpr("?", fields)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		id := uuid.NewString()
		query := `INSERT INTO documents (id, collection, fields) VALUES (?, ?, ` + expr + `)`
		if _, err := tx.ExecContext(ctx, query, append([]any{id, collection}, args...)...); err != nil {
			return nil, fmt.Errorf("create %s: %w", collection, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.feed.Notify(collection)
	return ids, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*repositories.RawDocument, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	doc := repositories.RawDocument{ID: id}
	if err := json.Unmarshal([]byte(raw), &doc.Fields); err != nil {
		return nil, fmt.Errorf("get %s/%s: decode fields: %w", collection, id, err)
	}
	return &doc, nil
}

// Update merges fields with json_patch. A nil value removes the field.
func (s *Store) Update(ctx context.Context, collection, id string, fields repositories.Fields) error {
	expr, args, err := fieldsExpr("json_patch(fields, ?)", fields)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	query := `UPDATE documents SET fields = ` + expr + ` WHERE collection = ? AND id = ?`
	res, err := s.db.ExecContext(ctx, query, append(args, collection, id)...)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(collection, id)
	}

	s.feed.Notify(collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(collection, id)
	}

	s.feed.Notify(collection)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q repositories.Query, l repositories.Listener) (repositories.Unsubscribe, error) {
	return s.feed.Watch(ctx, q, l)
}

func (s *Store) Close() error {
	s.feed.Close()
	return s.db.Close()
}

func (s *Store) query(ctx context.Context, q repositories.Query) ([]repositories.RawDocument, error) {
	query, args, err := buildSelect(q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []repositories.RawDocument
	for rows.Next() {
		var doc repositories.RawDocument
		var raw string
		if err := rows.Scan(&doc.ID, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
		}
		if err := json.Unmarshal([]byte(raw), &doc.Fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s fields: %w", q.Collection, doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// fieldsExpr wraps base (an expression taking the JSON-encoded plain fields as its one
// parameter) in json_set calls for each server timestamp.
func fieldsExpr(base string, fields repositories.Fields) (string, []any, error) {
	plain := make(map[string]any, len(fields))
	var stamped []string
	for k, v := range fields {
		if err := repositories.ValidateFieldName(k); err != nil {
			return "", nil, err
		}
		if repositories.IsServerTimestamp(v) {
			stamped = append(stamped, k)
			continue
		}
		plain[k] = v
	}
	sort.Strings(stamped)

	payload, err := json.Marshal(plain)
	if err != nil {
		return "", nil, fmt.Errorf("encode fields: %w", err)
	}

	args := []any{string(payload)}
	if len(stamped) == 0 {
		return base, args, nil
	}

	var b strings.Builder
	b.WriteString("json_set(")
	b.WriteString(base)
	for _, k := range stamped {
		b.WriteString(", ?, " + serverTimestampSQL)
		args = append(args, "$."+k)
	}
	b.WriteString(")")
	return b.String(), args, nil
}

func buildSelect(q repositories.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	args := []any{q.Collection}
	var b strings.Builder
	b.WriteString("SELECT id, fields FROM documents WHERE collection = ?")

	for _, f := range q.Filters {
		value, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		// Both sides go through json_extract so booleans and numbers compare alike.
		b.WriteString(" AND json_extract(fields, ?) = json_extract(?, '$')")
		args = append(args, "$."+f.Field, string(value))
	}

	if q.OrderBy != "" {
		b.WriteString(" ORDER BY json_extract(fields, ?) " + strings.ToUpper(q.Direction.String()) + ", id")
		args = append(args, "$."+q.OrderBy)
	}

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	return b.String(), args, nil
}

func notFound(collection, id string) error {
	return &domain.NotFoundError{Message: fmt.Sprintf("%s/%s not found", collection, id)}
}
