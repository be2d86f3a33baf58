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

const areaColumns = `id, world_id, name, description, temperature, exits, triggers`

func scanArea(scan func(...any) error) (*world.Area, error) {
	var a world.Area
	var desc, exits, triggers sql.NullString
	if err := scan(&a.ID, &a.WorldID, &a.Name, &desc, &a.Temperature, &exits, &triggers); err != nil {
		return nil, err
	}
	a.Description = desc.String
	a.Exits = make(map[string]int64)
	if err := unmarshalJSON(exits, &a.Exits); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(triggers, &a.Triggers); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAreas returns all areas in a world.
func (s *Store) ListAreas(ctx context.Context, worldID int64) ([]*world.Area, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT `+areaColumns+` FROM areas WHERE world_id = ? ORDER BY id ASC`, worldID)
	if err != nil {
		return nil, fmt.Errorf("failed to list areas: %w", err)
	}
	defer rows.Close()

	var areas []*world.Area
	for rows.Next() {
		a, err := scanArea(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan area: %w", err)
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

// GetArea fetches one area by id.
func (s *Store) GetArea(ctx context.Context, id int64) (*world.Area, error) {
	return s.GetAreaTx(ctx, s.db, id)
}

// GetAreaTx fetches one area inside an existing transaction.
func (s *Store) GetAreaTx(ctx context.Context, q dbtx, id int64) (*world.Area, error) {
	row := s.queryRow(ctx, q, `SELECT `+areaColumns+` FROM areas WHERE id = ?`, id)
	a, err := scanArea(row.Scan)
	if err == sql.ErrNoRows {
		return nil, world.NotFoundf("area %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get area: %w", err)
	}
	return a, nil
}

// CreateArea inserts an area and returns its id. The world must exist.
func (s *Store) CreateArea(ctx context.Context, a *world.Area) (int64, error) {
	if a.Name == "" {
		return 0, world.Validationf("area name is required")
	}
	if _, err := s.GetWorld(ctx, a.WorldID); err != nil {
		return 0, err
	}

	exits, err := marshalJSON(a.Exits)
	if err != nil {
		return 0, err
	}
	triggers, err := marshalJSON(a.Triggers)
	if err != nil {
		return 0, err
	}

	id, err := s.insertID(ctx, s.db,
		`INSERT INTO areas (world_id, name, description, temperature, exits, triggers)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.WorldID, a.Name, a.Description, a.Temperature, exits, triggers)
	if err != nil {
		return 0, fmt.Errorf("failed to create area: %w", err)
	}
	return id, nil
}

// UpdateAreaTx rewrites an area's mutable fields inside a transaction.
// Used by trigger reactions that modify exits, description, or temperature.
func (s *Store) UpdateAreaTx(ctx context.Context, q dbtx, a *world.Area) error {
	exits, err := marshalJSON(a.Exits)
	if err != nil {
		return err
	}
	triggers, err := marshalJSON(a.Triggers)
	if err != nil {
		return err
	}

	res, err := s.exec(ctx, q,
		`UPDATE areas SET name = ?, description = ?, temperature = ?, exits = ?, triggers = ?
		 WHERE id = ?`,
		a.Name, a.Description, a.Temperature, exits, triggers, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update area: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return world.NotFoundf("area %d not found", a.ID)
	}
	return nil
}

// DeleteArea removes an area. Characters and items located there have
// their area reference cleared by the foreign key.
func (s *Store) DeleteArea(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM areas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete area: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return world.NotFoundf("area %d not found", id)
	}
	return nil
}
