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

const characterColumns = `id, world_id, name, species, gender, age, description, backstory,
	memory, likes, dislikes, interests, beliefs, internal_conflict,
	nutrition, hydration, tiredness, alertness, damage,
	current_area_id, owner_id, character_class`

func scanCharacter(scan func(...any) error) (*world.Character, error) {
	var c world.Character
	var species, gender, desc, backstory, conflict sql.NullString
	var memory, likes, dislikes, interests, beliefs, damage sql.NullString
	var age sql.NullInt64
	var areaID sql.NullInt64
	var ownerID sql.NullString

	err := scan(
		&c.ID, &c.WorldID, &c.Name, &species, &gender, &age, &desc, &backstory,
		&memory, &likes, &dislikes, &interests, &beliefs, &conflict,
		&c.Nutrition, &c.Hydration, &c.Tiredness, &c.Alertness, &damage,
		&areaID, &ownerID, &c.Class)
	if err != nil {
		return nil, err
	}

	c.Species = species.String
	c.Gender = gender.String
	c.Age = int(age.Int64)
	c.Description = desc.String
	c.Backstory = backstory.String
	c.InternalConflict = conflict.String

	if err := unmarshalJSON(memory, &c.Memory); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(likes, &c.Likes); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(dislikes, &c.Dislikes); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(interests, &c.Interests); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(beliefs, &c.Beliefs); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(damage, &c.Damage); err != nil {
		return nil, err
	}

	if areaID.Valid {
		v := areaID.Int64
		c.CurrentAreaID = &v
	}
	if ownerID.Valid && ownerID.String != "" {
		v := ownerID.String
		c.OwnerID = &v
	}
	return &c, nil
}

// GetCharacter fetches one character by id.
func (s *Store) GetCharacter(ctx context.Context, id int64) (*world.Character, error) {
	return s.GetCharacterTx(ctx, s.db, id)
}

// GetCharacterTx fetches one character inside an existing transaction.
func (s *Store) GetCharacterTx(ctx context.Context, q dbtx, id int64) (*world.Character, error) {
	row := s.queryRow(ctx, q, `SELECT `+characterColumns+` FROM characters WHERE id = ?`, id)
	c, err := scanCharacter(row.Scan)
	if err == sql.ErrNoRows {
		return nil, world.NotFoundf("character %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get character: %w", err)
	}
	return c, nil
}

func (s *Store) queryCharacters(ctx context.Context, q dbtx, query string, args ...any) ([]*world.Character, error) {
	rows, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query characters: %w", err)
	}
	defer rows.Close()

	var characters []*world.Character
	for rows.Next() {
		c, err := scanCharacter(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		characters = append(characters, c)
	}
	return characters, rows.Err()
}

// ListCharacters returns all characters in a world.
func (s *Store) ListCharacters(ctx context.Context, worldID int64) ([]*world.Character, error) {
	return s.queryCharacters(ctx, s.db,
		`SELECT `+characterColumns+` FROM characters WHERE world_id = ? ORDER BY id ASC`, worldID)
}

// CharactersInArea returns characters currently located in an area.
func (s *Store) CharactersInArea(ctx context.Context, areaID int64) ([]*world.Character, error) {
	return s.CharactersInAreaTx(ctx, s.db, areaID)
}

// CharactersInAreaTx is CharactersInArea inside an existing transaction.
func (s *Store) CharactersInAreaTx(ctx context.Context, q dbtx, areaID int64) ([]*world.Character, error) {
	return s.queryCharacters(ctx, q,
		`SELECT `+characterColumns+` FROM characters WHERE current_area_id = ? ORDER BY id ASC`, areaID)
}

// ListAwake returns all characters in a world with alertness above the
// waking threshold.
func (s *Store) ListAwake(ctx context.Context, worldID int64) ([]*world.Character, error) {
	return s.queryCharacters(ctx, s.db,
		`SELECT `+characterColumns+` FROM characters
		 WHERE world_id = ? AND alertness >= ? ORDER BY id ASC`,
		worldID, world.AwakeThreshold)
}

// ListEligible returns the characters the scheduler may drive this cycle:
// unowned and awake, story class first, then by id for determinism.
// Class ordering relies on 'story' > 'minor' lexicographically.
func (s *Store) ListEligible(ctx context.Context, worldID int64) ([]*world.Character, error) {
	return s.queryCharacters(ctx, s.db,
		`SELECT `+characterColumns+` FROM characters
		 WHERE world_id = ? AND owner_id IS NULL AND alertness >= ?
		 ORDER BY character_class DESC, id ASC`,
		worldID, world.AwakeThreshold)
}

// ListUnowned returns every character in a world not claimed by a
// player, asleep or not, story class first, then by id for determinism.
// Class ordering relies on 'story' > 'minor' lexicographically.
func (s *Store) ListUnowned(ctx context.Context, worldID int64) ([]*world.Character, error) {
	return s.queryCharacters(ctx, s.db,
		`SELECT `+characterColumns+` FROM characters
		 WHERE world_id = ? AND owner_id IS NULL
		 ORDER BY character_class DESC, id ASC`,
		worldID)
}

// CreateCharacter inserts a character and returns its id.
func (s *Store) CreateCharacter(ctx context.Context, c *world.Character) (int64, error) {
	if c.Name == "" {
		return 0, world.Validationf("character name is required")
	}
	switch c.Class {
	case "":
		c.Class = world.ClassMinor
	case world.ClassStory, world.ClassMinor:
	default:
		return 0, world.Validationf("invalid character class %q", c.Class)
	}
	if _, err := s.GetWorld(ctx, c.WorldID); err != nil {
		return 0, err
	}

	memory, err := marshalJSON(c.Memory)
	if err != nil {
		return 0, err
	}
	likes, err := marshalJSON(c.Likes)
	if err != nil {
		return 0, err
	}
	dislikes, err := marshalJSON(c.Dislikes)
	if err != nil {
		return 0, err
	}
	interests, err := marshalJSON(c.Interests)
	if err != nil {
		return 0, err
	}
	beliefs, err := marshalJSON(c.Beliefs)
	if err != nil {
		return 0, err
	}
	damage, err := marshalJSON(c.Damage)
	if err != nil {
		return 0, err
	}

	id, err := s.insertID(ctx, s.db,
		`INSERT INTO characters (world_id, name, species, gender, age, description, backstory,
			memory, likes, dislikes, interests, beliefs, internal_conflict,
			nutrition, hydration, tiredness, alertness, damage,
			current_area_id, owner_id, character_class)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.WorldID, c.Name, c.Species, c.Gender, c.Age, c.Description, c.Backstory,
		memory, likes, dislikes, interests, beliefs, c.InternalConflict,
		world.ClampPercent(c.Nutrition), world.ClampPercent(c.Hydration),
		world.ClampPercent(c.Tiredness), world.ClampPercent(c.Alertness), damage,
		c.CurrentAreaID, c.OwnerID, c.Class)
	if err != nil {
		return 0, fmt.Errorf("failed to create character: %w", err)
	}
	return id, nil
}

// SetCharacterAreaTx moves a character's location reference.
func (s *Store) SetCharacterAreaTx(ctx context.Context, q dbtx, characterID int64, areaID *int64) error {
	res, err := s.exec(ctx, q,
		`UPDATE characters SET current_area_id = ? WHERE id = ?`, areaID, characterID)
	if err != nil {
		return fmt.Errorf("failed to set character area: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return world.NotFoundf("character %d not found", characterID)
	}
	return nil
}

// SetCharacterMemoryTx replaces a character's memory tail.
func (s *Store) SetCharacterMemoryTx(ctx context.Context, q dbtx, characterID int64, memory []world.MemoryEntry) error {
	data, err := marshalJSON(memory)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, q,
		`UPDATE characters SET memory = ? WHERE id = ?`, data, characterID)
	if err != nil {
		return fmt.Errorf("failed to set character memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return world.NotFoundf("character %d not found", characterID)
	}
	return nil
}

// UpdateCharacterStateTx writes the physiology fields and damage list.
// Values must already be clamped by the caller.
func (s *Store) UpdateCharacterStateTx(ctx context.Context, q dbtx, c *world.Character) error {
	damage, err := marshalJSON(c.Damage)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, q,
		`UPDATE characters SET nutrition = ?, hydration = ?, tiredness = ?, alertness = ?, damage = ?
		 WHERE id = ?`,
		c.Nutrition, c.Hydration, c.Tiredness, c.Alertness, damage, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update character state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return world.NotFoundf("character %d not found", c.ID)
	}
	return nil
}

// SetCharacterOwner assigns or clears a character's controlling player.
func (s *Store) SetCharacterOwner(ctx context.Context, characterID int64, ownerID *string) error {
	res, err := s.exec(ctx, s.db,
		`UPDATE characters SET owner_id = ? WHERE id = ?`, ownerID, characterID)
	if err != nil {
		return fmt.Errorf("failed to set character owner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return world.NotFoundf("character %d not found", characterID)
	}
	return nil
}

// DeleteCharacter removes a character. Held items are first returned to
// the character's current area so they keep a resolvable location; when
// the character has no area the hold and area fields are all cleared.
func (s *Store) DeleteCharacter(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := s.GetCharacterTx(ctx, tx, id)
		if err != nil {
			return err
		}
		held, err := s.ItemsHeldByTx(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, item := range held {
			if err := s.SetItemLocationTx(ctx, tx, item.ID, c.CurrentAreaID, nil, nil); err != nil {
				return err
			}
		}
		res, err := s.exec(ctx, tx, `DELETE FROM characters WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete character: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return world.NotFoundf("character %d not found", id)
		}
		return nil
	})
}
