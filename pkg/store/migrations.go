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

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Migration is one reversible schema change. Up and Down return the
// statements for a dialect; they run inside a single transaction and are
// recorded in the migrations ledger.
type Migration struct {
	Name string
	Up   func(dialect string) []string
	Down func(dialect string) []string
}

// pk returns the auto-incrementing primary key column definition.
func pk(dialect string) string {
	switch dialect {
	case "postgres":
		return "BIGSERIAL PRIMARY KEY"
	case "mysql":
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default: // sqlite
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

// migrations lists all schema changes in order. Names are unique and
// never reused.
var migrations = []Migration{
	{
		Name: "001_worlds_and_areas",
		Up: func(d string) []string {
			return []string{
				`CREATE TABLE worlds (
					id ` + pk(d) + `,
					name VARCHAR(255) NOT NULL,
					description TEXT
				)`,
				`CREATE TABLE writing_styles (
					id ` + pk(d) + `,
					world_id BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
					tone TEXT,
					perspective TEXT,
					pacing TEXT,
					themes TEXT,
					notes TEXT
				)`,
				`CREATE INDEX idx_writing_styles_world ON writing_styles(world_id)`,
				`CREATE TABLE areas (
					id ` + pk(d) + `,
					world_id BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					temperature REAL NOT NULL DEFAULT 20,
					exits TEXT,
					triggers TEXT
				)`,
				`CREATE INDEX idx_areas_world ON areas(world_id)`,
			}
		},
		Down: func(d string) []string {
			return []string{
				`DROP TABLE areas`,
				`DROP TABLE writing_styles`,
				`DROP TABLE worlds`,
			}
		},
	},
	{
		Name: "002_characters_and_items",
		Up: func(d string) []string {
			return []string{
				`CREATE TABLE characters (
					id ` + pk(d) + `,
					world_id BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					species VARCHAR(255),
					gender VARCHAR(64),
					age INTEGER,
					description TEXT,
					backstory TEXT,
					memory TEXT,
					likes TEXT,
					dislikes TEXT,
					interests TEXT,
					beliefs TEXT,
					internal_conflict TEXT,
					nutrition REAL NOT NULL DEFAULT 100 CHECK (nutrition >= 0 AND nutrition <= 100),
					hydration REAL NOT NULL DEFAULT 100 CHECK (hydration >= 0 AND hydration <= 100),
					tiredness REAL NOT NULL DEFAULT 0 CHECK (tiredness >= 0 AND tiredness <= 100),
					alertness REAL NOT NULL DEFAULT 100 CHECK (alertness >= 0 AND alertness <= 100),
					damage TEXT,
					current_area_id BIGINT REFERENCES areas(id) ON DELETE SET NULL,
					owner_id VARCHAR(255),
					character_class VARCHAR(16) NOT NULL DEFAULT 'minor' CHECK (character_class IN ('story', 'minor'))
				)`,
				`CREATE INDEX idx_characters_world ON characters(world_id)`,
				`CREATE INDEX idx_characters_area ON characters(current_area_id)`,
				`CREATE INDEX idx_characters_owner ON characters(owner_id)`,
				`CREATE INDEX idx_characters_class ON characters(character_class)`,
				`CREATE TABLE items (
					id ` + pk(d) + `,
					world_id BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					properties TEXT,
					current_area_id BIGINT REFERENCES areas(id) ON DELETE SET NULL,
					held_by_character_id BIGINT REFERENCES characters(id) ON DELETE SET NULL,
					held_location VARCHAR(64)
				)`,
				`CREATE INDEX idx_items_world ON items(world_id)`,
				`CREATE INDEX idx_items_area ON items(current_area_id)`,
				`CREATE INDEX idx_items_holder ON items(held_by_character_id)`,
			}
		},
		Down: func(d string) []string {
			return []string{
				`DROP TABLE items`,
				`DROP TABLE characters`,
			}
		},
	},
	{
		Name: "003_narrative",
		Up: func(d string) []string {
			return []string{
				`CREATE TABLE series (
					id ` + pk(d) + `,
					world_id BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					description TEXT
				)`,
				`CREATE INDEX idx_series_world ON series(world_id)`,
				`CREATE TABLE books (
					id ` + pk(d) + `,
					series_id BIGINT NOT NULL REFERENCES series(id) ON DELETE CASCADE,
					number INTEGER NOT NULL DEFAULT 1,
					title VARCHAR(255) NOT NULL,
					status VARCHAR(16) NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'writing', 'complete', 'published'))
				)`,
				`CREATE INDEX idx_books_series ON books(series_id)`,
				`CREATE TABLE chapters (
					id ` + pk(d) + `,
					book_id BIGINT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
					number INTEGER NOT NULL DEFAULT 1,
					title VARCHAR(255),
					content TEXT,
					raw_events TEXT,
					status VARCHAR(16) NOT NULL DEFAULT 'collecting' CHECK (status IN ('collecting', 'drafted', 'revised', 'final'))
				)`,
				`CREATE INDEX idx_chapters_book ON chapters(book_id)`,
			}
		},
		Down: func(d string) []string {
			return []string{
				`DROP TABLE chapters`,
				`DROP TABLE books`,
				`DROP TABLE series`,
			}
		},
	},
}

const createMigrationsTableSQL = `
CREATE TABLE IF NOT EXISTS migrations (
    id %s,
    name VARCHAR(255) NOT NULL UNIQUE,
    executed_at TIMESTAMP NOT NULL
)`

func (s *Store) ensureMigrationsTable(ctx context.Context) error {
	stmt := fmt.Sprintf(createMigrationsTableSQL, pk(s.dialect))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.query(ctx, s.db, `SELECT name FROM migrations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations in order.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Name] {
			continue
		}

		err := s.WithTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.Up(s.dialect) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %s: %w", m.Name, err)
				}
			}
			_, err := s.exec(ctx, tx,
				`INSERT INTO migrations (name, executed_at) VALUES (?, ?)`,
				m.Name, time.Now().UTC())
			return err
		})
		if err != nil {
			return err
		}
		slog.Info("Applied migration", "name", m.Name)
	}
	return nil
}

// Rollback reverses the most recently applied migration.
func (s *Store) Rollback(ctx context.Context) error {
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	var name string
	err := s.queryRow(ctx, s.db, `SELECT name FROM migrations ORDER BY id DESC LIMIT 1`).Scan(&name)
	if err == sql.ErrNoRows {
		return fmt.Errorf("no migrations to roll back")
	}
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	var target *Migration
	for i := range migrations {
		if migrations[i].Name == name {
			target = &migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("unknown migration in ledger: %s", name)
	}

	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range target.Down(s.dialect) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("rollback %s: %w", name, err)
			}
		}
		_, err := s.exec(ctx, tx, `DELETE FROM migrations WHERE name = ?`, name)
		return err
	})
	if err != nil {
		return err
	}
	slog.Info("Rolled back migration", "name", name)
	return nil
}
