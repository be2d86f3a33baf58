// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store is the persistence adapter for world state. It provides
// typed reads and writes per entity over PostgreSQL, MySQL, or SQLite,
// with JSON-valued columns decoded on load.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Solifugus/storysplicer/pkg/world"

	// SQL drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// txRetries bounds optimistic transaction retries before surfacing Conflict.
const txRetries = 3

// Store is a SQL-backed persistence adapter. Concurrency is handled by
// database-level locking (transactions).
type Store struct {
	db         *sql.DB
	dialect    string
	logQueries bool
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a store over an open database connection.
// Supported dialects: postgres, mysql, sqlite.
func New(db *sql.DB, dialect string) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case "postgres", "mysql", "sqlite", "sqlite3":
		if dialect == "sqlite3" {
			dialect = "sqlite"
		}
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	return &Store{db: db, dialect: dialect}, nil
}

// SetLogQueries enables SQL statement logging at debug level.
func (s *Store) SetLogQueries(enabled bool) {
	s.logQueries = enabled
}

// Dialect returns the normalized dialect name.
func (s *Store) Dialect() string {
	return s.dialect
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// convert rewrites ? placeholders into the dialect's positional form.
func (s *Store) convert(query string) string {
	if s.dialect == "postgres" {
		return convertToPostgresPlaceholders(query)
	}
	return query
}

func (s *Store) logQuery(query string, args []any) {
	if s.logQueries {
		slog.Debug("SQL", "query", collapseWhitespace(query), "args", fmt.Sprintf("%v", args))
	}
}

func (s *Store) exec(ctx context.Context, q dbtx, query string, args ...any) (sql.Result, error) {
	s.logQuery(query, args)
	return q.ExecContext(ctx, s.convert(query), args...)
}

func (s *Store) query(ctx context.Context, q dbtx, query string, args ...any) (*sql.Rows, error) {
	s.logQuery(query, args)
	return q.QueryContext(ctx, s.convert(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q dbtx, query string, args ...any) *sql.Row {
	s.logQuery(query, args)
	return q.QueryRowContext(ctx, s.convert(query), args...)
}

// WithTx runs fn inside a transaction, retrying a bounded number of times
// on lock or serialization conflicts. The retry budget exhausting surfaces
// a Conflict error.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < txRetries; attempt++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(tx); err != nil {
			tx.Rollback()
			if isRetryable(err) {
				lastErr = err
				time.Sleep(time.Duration(attempt+1) * 25 * time.Millisecond)
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isRetryable(err) {
				lastErr = err
				time.Sleep(time.Duration(attempt+1) * 25 * time.Millisecond)
				continue
			}
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}
	return world.Errorf(world.CodeConflict, "transaction retry budget exceeded: %v", lastErr)
}

// isRetryable reports whether an error indicates a transient lock or
// serialization conflict worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "lock wait timeout")
}

// insertID executes an INSERT and returns the generated id.
// PostgreSQL has no LastInsertId, so the query gets a RETURNING clause.
func (s *Store) insertID(ctx context.Context, q dbtx, query string, args ...any) (int64, error) {
	if s.dialect == "postgres" {
		var id int64
		err := s.queryRow(ctx, q, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}

	res, err := s.exec(ctx, q, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// marshalJSON serializes a JSON column value, mapping nil to "null".
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal json column: %w", err)
	}
	return string(data), nil
}

// unmarshalJSON decodes a nullable JSON column into out. Empty and NULL
// values leave out untouched.
func unmarshalJSON(raw sql.NullString, out any) error {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), out); err != nil {
		return fmt.Errorf("failed to unmarshal json column: %w", err)
	}
	return nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// convertToPostgresPlaceholders converts ? to $1, $2, etc. in a single pass.
func convertToPostgresPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 20)
	paramNum := 1
	for _, c := range query {
		if c == '?' {
			b.WriteString(fmt.Sprintf("$%d", paramNum))
			paramNum++
		} else {
			b.WriteRune(c)
		}
	}
	return b.String()
}
