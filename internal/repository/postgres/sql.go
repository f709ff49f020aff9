package postgres

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"skynotes/internal/domain/repositories"
)

// documentsTable holds every collection; the collection column partitions it.
const documentsTable = "documents"

// serverTimestampSQL renders the database clock in a fixed-width UTC layout so that
// timestamps stored in JSONB sort chronologically as strings.
const serverTimestampSQL = `to_jsonb(to_char(now() AT TIME ZONE 'utc', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"'))`

// fieldsExpr builds a JSONB expression that merges fields onto base. A nil value
// removes the key. Placeholder numbering continues after the args already present.
func fieldsExpr(base string, fields repositories.Fields, args []any) (string, []any, error) {
	plain := make(map[string]any, len(fields))
	var stamped, removed []string
	for k, v := range fields {
		if err := repositories.ValidateFieldName(k); err != nil {
			return "", nil, err
		}
		switch {
		case repositories.IsServerTimestamp(v):
			stamped = append(stamped, k)
		case v == nil:
			removed = append(removed, k)
		default:
			plain[k] = v
		}
	}
	sort.Strings(stamped)
	sort.Strings(removed)

	payload, err := json.Marshal(plain)
	if err != nil {
		return "", nil, fmt.Errorf("encode fields: %w", err)
	}

	args = append(args, string(payload))
	var b strings.Builder
	fmt.Fprintf(&b, "%s || $%d::jsonb", base, len(args))
	if len(removed) > 0 {
		args = append(args, removed)
		expr := b.String()
		b.Reset()
		fmt.Fprintf(&b, "(%s) - $%d::text[]", expr, len(args))
	}
	for _, k := range stamped {
		args = append(args, k)
		fmt.Fprintf(&b, " || jsonb_build_object($%d::text, %s)", len(args), serverTimestampSQL)
	}
	return b.String(), args, nil
}

func buildInsert(collection string, fields repositories.Fields) (string, []any, error) {
	expr, args, err := fieldsExpr("'{}'::jsonb", fields, []any{collection})
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf(`INSERT INTO %s (collection, fields) VALUES ($1, %s) RETURNING id::text`, documentsTable, expr)
	return query, args, nil
}

func buildUpdate(collection, id string, fields repositories.Fields) (string, []any, error) {
	expr, args, err := fieldsExpr("fields", fields, []any{collection, id})
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf(`UPDATE %s SET fields = %s, updated_at = now() WHERE collection = $1 AND id = $2`, documentsTable, expr)
	return query, args, nil
}

func buildSelect(q repositories.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	args := []any{q.Collection}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id::text, fields FROM %s WHERE collection = $1", documentsTable)

	for _, f := range q.Filters {
		value, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		args = append(args, f.Field, string(value))
		fmt.Fprintf(&b, " AND fields -> $%d = $%d::jsonb", len(args)-1, len(args))
	}

	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		dir := "ASC"
		if q.Direction == repositories.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY fields -> $%d %s, id", len(args), dir)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	return b.String(), args, nil
}
