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

package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Solifugus/storysplicer/pkg/kernel"
	"github.com/Solifugus/storysplicer/pkg/session"
	"github.com/Solifugus/storysplicer/pkg/store"
	"github.com/Solifugus/storysplicer/pkg/world"
)

type fixture struct {
	store    *store.Store
	sessions *session.Manager
	registry *Registry

	worldID int64
	areaID  int64
	charID  int64
	itemID  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec("PRAGMA foreign_keys=ON")
	require.NoError(t, err)

	s, err := store.New(db, "sqlite")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))

	k := kernel.New(s)
	sessions := session.NewManager(s)

	f := &fixture{store: s, sessions: sessions, registry: NewRegistry()}
	require.NoError(t, NewService(k, sessions).Register(f.registry))

	f.worldID, err = s.CreateWorld(ctx, "Aldera", "a quiet valley")
	require.NoError(t, err)
	f.areaID, err = s.CreateArea(ctx, &world.Area{WorldID: f.worldID, Name: "Meadow"})
	require.NoError(t, err)
	f.charID, err = s.CreateCharacter(ctx, &world.Character{
		WorldID: f.worldID, Name: "Mira", Class: world.ClassMinor,
		Alertness: 100, Nutrition: 100, Hydration: 100,
		CurrentAreaID: &f.areaID,
	})
	require.NoError(t, err)
	f.itemID, err = s.CreateItem(ctx, &world.Item{
		WorldID: f.worldID, Name: "Torch", CurrentAreaID: &f.areaID,
	})
	require.NoError(t, err)
	return f
}

// call runs a tool and decodes its JSON content into dst.
func (f *fixture) call(t *testing.T, ctx context.Context, name string, args map[string]any, dst any) error {
	t.Helper()
	tool, ok := f.registry.Get(name)
	require.True(t, ok, "tool %s not registered", name)
	res, err := tool.Execute(ctx, args)
	if err != nil {
		return err
	}
	require.True(t, res.Success)
	if dst != nil {
		require.NoError(t, json.Unmarshal([]byte(res.Content), dst))
	}
	return nil
}

func TestRegistry_Catalogue(t *testing.T) {
	f := newFixture(t)

	infos := f.registry.List()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}

	for _, want := range []string{
		"world_list", "world_get", "world_create", "world_get_writing_style",
		"area_list", "area_get", "area_get_characters", "area_get_items", "area_create",
		"character_get", "character_list_awake", "character_move", "character_speak",
		"character_update_state", "character_get_inventory", "character_add_memory",
		"item_get", "item_pickup", "item_drop", "item_create",
		"session_claim", "session_release",
	} {
		assert.Contains(t, names, want)
	}
	assert.Len(t, infos, 22)
}

func TestWorldTools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var created map[string]int64
	require.NoError(t, f.call(t, ctx, "world_create",
		map[string]any{"name": "Veylan", "description": "dunes"}, &created))
	require.NotZero(t, created["world_id"])

	var worlds []world.World
	require.NoError(t, f.call(t, ctx, "world_list", nil, &worlds))
	assert.Len(t, worlds, 2)

	var got world.World
	require.NoError(t, f.call(t, ctx, "world_get",
		map[string]any{"world_id": float64(created["world_id"])}, &got))
	assert.Equal(t, "Veylan", got.Name)

	err := f.call(t, ctx, "world_get_writing_style",
		map[string]any{"world_id": float64(f.worldID)}, nil)
	assert.True(t, errors.Is(err, world.ErrNotFound))
}

func TestAreaTools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var created map[string]int64
	require.NoError(t, f.call(t, ctx, "area_create", map[string]any{
		"world_id":    float64(f.worldID),
		"name":        "Forest",
		"temperature": 12.5,
		"exits":       map[string]any{"South": float64(f.areaID)},
	}, &created))

	var areas []*world.Area
	require.NoError(t, f.call(t, ctx, "area_list",
		map[string]any{"world_id": float64(f.worldID)}, &areas))
	assert.Len(t, areas, 2)

	var forest *world.Area
	for _, a := range areas {
		if a.Name == "Forest" {
			forest = a
		}
	}
	require.NotNil(t, forest)
	assert.Equal(t, 12.5, forest.Temperature)
	assert.Equal(t, f.areaID, forest.Exits["south"])

	var view areaView
	require.NoError(t, f.call(t, ctx, "area_get",
		map[string]any{"area_id": float64(f.areaID)}, &view))
	require.NotNil(t, view.Area)
	assert.Equal(t, "Meadow", view.Area.Name)
	require.Len(t, view.Characters, 1)
	assert.Equal(t, "Mira", view.Characters[0].Name)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Torch", view.Items[0].Name)
}

func TestCharacterTools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var view characterView
	require.NoError(t, f.call(t, ctx, "character_get",
		map[string]any{"character_id": float64(f.charID)}, &view))
	assert.Equal(t, "Mira", view.Character.Name)
	assert.Empty(t, view.Inventory)

	// Clamp above 100, and exhaustion forces sleep.
	var updated world.Character
	require.NoError(t, f.call(t, ctx, "character_update_state", map[string]any{
		"character_id": float64(f.charID),
		"nutrition":    float64(150),
		"tiredness":    float64(100),
	}, &updated))
	assert.Equal(t, 100.0, updated.Nutrition)
	assert.Equal(t, 0.0, updated.Alertness)

	var awake []*world.Character
	require.NoError(t, f.call(t, ctx, "character_list_awake",
		map[string]any{"world_id": float64(f.worldID)}, &awake))
	assert.Empty(t, awake)

	require.NoError(t, f.call(t, ctx, "character_add_memory", map[string]any{
		"character_id": float64(f.charID),
		"action":       "rested",
		"result":       "felt better",
	}, nil))
	c, err := f.store.GetCharacter(ctx, f.charID)
	require.NoError(t, err)
	require.NotEmpty(t, c.Memory)
	assert.Equal(t, "rested", c.Memory[len(c.Memory)-1].Action)
}

func TestItemTools_PickupDefaultsToFreeHand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var res map[string]any
	require.NoError(t, f.call(t, ctx, "item_pickup", map[string]any{
		"character_id": float64(f.charID),
		"item_id":      float64(f.itemID),
	}, &res))
	assert.Equal(t, world.HandRight, res["location"])

	var lantern map[string]int64
	require.NoError(t, f.call(t, ctx, "item_create", map[string]any{
		"world_id": float64(f.worldID),
		"name":     "Lantern",
		"area_id":  float64(f.areaID),
	}, &lantern))
	require.NoError(t, f.call(t, ctx, "item_pickup", map[string]any{
		"character_id": float64(f.charID),
		"item_id":      float64(lantern["item_id"]),
	}, &res))
	assert.Equal(t, world.HandLeft, res["location"])

	// Third pickup has nowhere to go.
	var rock map[string]int64
	require.NoError(t, f.call(t, ctx, "item_create", map[string]any{
		"world_id": float64(f.worldID),
		"name":     "Rock",
		"area_id":  float64(f.areaID),
	}, &rock))
	err := f.call(t, ctx, "item_pickup", map[string]any{
		"character_id": float64(f.charID),
		"item_id":      float64(rock["item_id"]),
	}, nil)
	assert.True(t, errors.Is(err, world.ErrBothHandsFull))

	require.NoError(t, f.call(t, ctx, "item_drop", map[string]any{
		"character_id": float64(f.charID),
		"item_id":      float64(f.itemID),
	}, nil))
	var inventory []*world.Item
	require.NoError(t, f.call(t, ctx, "character_get_inventory",
		map[string]any{"character_id": float64(f.charID)}, &inventory))
	assert.Len(t, inventory, 1)
}

func TestRemoteAuthorization(t *testing.T) {
	f := newFixture(t)
	local := context.Background()
	remote := WithRemote(local)

	moveArgs := map[string]any{
		"character_id": float64(f.charID),
		"area_id":      float64(f.areaID),
	}

	// Local callers bypass the policy.
	require.NoError(t, f.call(t, local, "character_move", moveArgs, nil))

	// Remote without a token is rejected.
	err := f.call(t, remote, "character_move", moveArgs, nil)
	assert.True(t, errors.Is(err, world.ErrValidation))

	// Claim through the tool surface, then move with the token.
	var claimed map[string]any
	require.NoError(t, f.call(t, remote, "session_claim", map[string]any{
		"player_id":    "player-1",
		"character_id": float64(f.charID),
	}, &claimed))
	token, _ := claimed["session_token"].(string)
	require.NotEmpty(t, token)

	moveArgs["session_token"] = token
	require.NoError(t, f.call(t, remote, "character_move", moveArgs, nil))

	// The token controls only its own character.
	otherID, err := f.store.CreateCharacter(local, &world.Character{
		WorldID: f.worldID, Name: "Tobin", Class: world.ClassMinor,
		Alertness: 100, Nutrition: 100, Hydration: 100,
	})
	require.NoError(t, err)
	err = f.call(t, remote, "character_speak", map[string]any{
		"character_id":  float64(otherID),
		"text":          "hello",
		"session_token": token,
	}, nil)
	assert.True(t, errors.Is(err, world.ErrAlreadyOwned))

	// Ownership is read from the database: once the owner column is
	// cleared out of band, the still-valid token no longer authorizes.
	require.NoError(t, f.store.SetCharacterOwner(local, f.charID, nil))
	err = f.call(t, remote, "character_move", moveArgs, nil)
	assert.True(t, errors.Is(err, world.ErrAlreadyOwned))
	owner := "player-1"
	require.NoError(t, f.store.SetCharacterOwner(local, f.charID, &owner))

	// Release returns the character to the scheduler.
	require.NoError(t, f.call(t, remote, "session_release", map[string]any{
		"character_id":  float64(f.charID),
		"session_token": token,
	}, nil))
	c, err := f.store.GetCharacter(local, f.charID)
	require.NoError(t, err)
	assert.Nil(t, c.OwnerID)
}

func TestToolValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.call(t, ctx, "world_get", map[string]any{}, nil)
	assert.True(t, errors.Is(err, world.ErrValidation))

	err = f.call(t, ctx, "world_get", map[string]any{"world_id": float64(9999)}, nil)
	assert.True(t, errors.Is(err, world.ErrNotFound))

	err = f.call(t, ctx, "character_speak", map[string]any{
		"character_id": float64(f.charID),
		"text":         "hm",
		"action_type":  "whistle",
	}, nil)
	assert.True(t, errors.Is(err, world.ErrValidation))
}
