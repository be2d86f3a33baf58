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

	"github.com/Solifugus/storysplicer/pkg/world"
)

// ListWorlds returns all worlds.
func (s *Store) ListWorlds(ctx context.Context) ([]world.World, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, name, description FROM worlds ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list worlds: %w", err)
	}
	defer rows.Close()

	var worlds []world.World
	for rows.Next() {
		var w world.World
		var desc sql.NullString
		if err := rows.Scan(&w.ID, &w.Name, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan world: %w", err)
		}
		w.Description = desc.String
		worlds = append(worlds, w)
	}
	return worlds, rows.Err()
}

// GetWorld fetches one world by id.
func (s *Store) GetWorld(ctx context.Context, id int64) (*world.World, error) {
	return s.getWorld(ctx, s.db, id)
}

func (s *Store) getWorld(ctx context.Context, q dbtx, id int64) (*world.World, error) {
	var w world.World
	var desc sql.NullString
	err := s.queryRow(ctx, q, `SELECT id, name, description FROM worlds WHERE id = ?`, id).
		Scan(&w.ID, &w.Name, &desc)
	if err == sql.ErrNoRows {
		return nil, world.NotFoundf("world %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get world: %w", err)
	}
	w.Description = desc.String
	return &w, nil
}

// CreateWorld inserts a world and returns its id.
func (s *Store) CreateWorld(ctx context.Context, name, description string) (int64, error) {
	if name == "" {
		return 0, world.Validationf("world name is required")
	}
	id, err := s.insertID(ctx, s.db,
		`INSERT INTO worlds (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		return 0, fmt.Errorf("failed to create world: %w", err)
	}
	return id, nil
}

// DeleteWorld removes a world. Foreign keys cascade to styles, areas,
// characters, items, and series.
func (s *Store) DeleteWorld(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM worlds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete world: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return world.NotFoundf("world %d not found", id)
	}
	return nil
}

// GetWritingStyle returns the writing style configured for a world.
func (s *Store) GetWritingStyle(ctx context.Context, worldID int64) (*world.WritingStyle, error) {
	var ws world.WritingStyle
	var tone, perspective, pacing, themes, notes sql.NullString
	err := s.queryRow(ctx, s.db,
		`SELECT id, world_id, tone, perspective, pacing, themes, notes
		 FROM writing_styles WHERE world_id = ? ORDER BY id ASC LIMIT 1`, worldID).
		Scan(&ws.ID, &ws.WorldID, &tone, &perspective, &pacing, &themes, &notes)
	if err == sql.ErrNoRows {
		return nil, world.NotFoundf("no writing style for world %d", worldID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get writing style: %w", err)
	}
	ws.Tone = tone.String
	ws.Perspective = perspective.String
	ws.Pacing = pacing.String
	ws.Themes = themes.String
	ws.Notes = notes.String
	return &ws, nil
}

// CreateWritingStyle inserts a writing style for a world.
func (s *Store) CreateWritingStyle(ctx context.Context, ws *world.WritingStyle) (int64, error) {
	id, err := s.insertID(ctx, s.db,
		`INSERT INTO writing_styles (world_id, tone, perspective, pacing, themes, notes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ws.WorldID, ws.Tone, ws.Perspective, ws.Pacing, ws.Themes, ws.Notes)
	if err != nil {
		return 0, fmt.Errorf("failed to create writing style: %w", err)
	}
	return id, nil
}
