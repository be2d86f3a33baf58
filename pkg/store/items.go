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

const itemColumns = `id, world_id, name, description, properties,
	current_area_id, held_by_character_id, held_location`

func scanItem(scan func(...any) error) (*world.Item, error) {
	var i world.Item
	var desc, props sql.NullString
	var areaID, holderID sql.NullInt64
	var heldLoc sql.NullString

	err := scan(&i.ID, &i.WorldID, &i.Name, &desc, &props, &areaID, &holderID, &heldLoc)
	if err != nil {
		return nil, err
	}

	i.Description = desc.String
	if err := unmarshalJSON(props, &i.Properties); err != nil {
		return nil, err
	}
	if areaID.Valid {
		v := areaID.Int64
		i.CurrentAreaID = &v
	}
	if holderID.Valid {
		v := holderID.Int64
		i.HeldByCharacterID = &v
	}
	if heldLoc.Valid && heldLoc.String != "" {
		v := heldLoc.String
		i.HeldLocation = &v
	}
	return &i, nil
}

// GetItem fetches one item by id.
func (s *Store) GetItem(ctx context.Context, id int64) (*world.Item, error) {
	return s.GetItemTx(ctx, s.db, id)
}

// GetItemTx fetches one item inside an existing transaction.
func (s *Store) GetItemTx(ctx context.Context, q dbtx, id int64) (*world.Item, error) {
	row := s.queryRow(ctx, q, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	i, err := scanItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, world.NotFoundf("item %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return i, nil
}

func (s *Store) queryItems(ctx context.Context, q dbtx, query string, args ...any) ([]*world.Item, error) {
	rows, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*world.Item
	for rows.Next() {
		i, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// ItemsInArea returns items lying in an area.
func (s *Store) ItemsInArea(ctx context.Context, areaID int64) ([]*world.Item, error) {
	return s.ItemsInAreaTx(ctx, s.db, areaID)
}

// ItemsInAreaTx is ItemsInArea inside an existing transaction.
func (s *Store) ItemsInAreaTx(ctx context.Context, q dbtx, areaID int64) ([]*world.Item, error) {
	return s.queryItems(ctx, q,
		`SELECT `+itemColumns+` FROM items WHERE current_area_id = ? ORDER BY id ASC`, areaID)
}

// ItemsHeldBy returns a character's inventory.
func (s *Store) ItemsHeldBy(ctx context.Context, characterID int64) ([]*world.Item, error) {
	return s.ItemsHeldByTx(ctx, s.db, characterID)
}

// ItemsHeldByTx is ItemsHeldBy inside an existing transaction.
func (s *Store) ItemsHeldByTx(ctx context.Context, q dbtx, characterID int64) ([]*world.Item, error) {
	return s.queryItems(ctx, q,
		`SELECT `+itemColumns+` FROM items WHERE held_by_character_id = ? ORDER BY id ASC`, characterID)
}

// CreateItem inserts an item and returns its id.
func (s *Store) CreateItem(ctx context.Context, i *world.Item) (int64, error) {
	return s.CreateItemTx(ctx, s.db, i)
}

// CreateItemTx inserts an item inside an existing transaction. Used by
// trigger reactions spawning items mid-event.
func (s *Store) CreateItemTx(ctx context.Context, q dbtx, i *world.Item) (int64, error) {
	if i.Name == "" {
		return 0, world.Validationf("item name is required")
	}
	props, err := marshalJSON(i.Properties)
	if err != nil {
		return 0, err
	}

	id, err := s.insertID(ctx, q,
		`INSERT INTO items (world_id, name, description, properties,
			current_area_id, held_by_character_id, held_location)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		i.WorldID, i.Name, i.Description, props,
		i.CurrentAreaID, i.HeldByCharacterID, i.HeldLocation)
	if err != nil {
		return 0, fmt.Errorf("failed to create item: %w", err)
	}
	return id, nil
}

// SetItemLocationTx atomically rewrites an item's location: either an
// area with no holder, or a holder with a hold location and no area.
func (s *Store) SetItemLocationTx(ctx context.Context, q dbtx, itemID int64, areaID, holderID *int64, heldLocation *string) error {
	res, err := s.exec(ctx, q,
		`UPDATE items SET current_area_id = ?, held_by_character_id = ?, held_location = ?
		 WHERE id = ?`,
		areaID, holderID, heldLocation, itemID)
	if err != nil {
		return fmt.Errorf("failed to set item location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return world.NotFoundf("item %d not found", itemID)
	}
	return nil
}

// DeleteItem removes an item.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	return s.DeleteItemTx(ctx, s.db, id)
}

// DeleteItemTx removes an item inside an existing transaction.
func (s *Store) DeleteItemTx(ctx context.Context, q dbtx, id int64) error {
	res, err := s.exec(ctx, q, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return world.NotFoundf("item %d not found", id)
	}
	return nil
}
