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

package scheduler

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Solifugus/storysplicer/pkg/kernel"
	"github.com/Solifugus/storysplicer/pkg/llms"
	"github.com/Solifugus/storysplicer/pkg/store"
	"github.com/Solifugus/storysplicer/pkg/world"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *Action
		wantErr bool
	}{
		{
			name:  "clean object",
			input: `{"action": "move", "direction": "north"}`,
			want:  &Action{Action: "move", Direction: "north"},
		},
		{
			name:  "surrounding prose",
			input: `I think I will go north. {"action": "move", "direction": "north"} There.`,
			want:  &Action{Action: "move", Direction: "north"},
		},
		{
			name:  "truncated closing brace",
			input: `{"action": "speak", "text": "Hello"`,
			want:  &Action{Action: "speak", Text: "Hello"},
		},
		{
			name:  "uppercase verb normalized",
			input: `{"action": "WAIT"}`,
			want:  &Action{Action: "wait"},
		},
		{
			name:    "no object",
			input:   `I wander around aimlessly.`,
			wantErr: true,
		},
		{
			name:    "missing action field",
			input:   `{"direction": "north"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Action, got.Action)
			assert.Equal(t, tt.want.Direction, got.Direction)
			assert.Equal(t, tt.want.Text, got.Text)
		})
	}
}

func TestPhysiologyTick_AwakeDrain(t *testing.T) {
	c := &world.Character{
		Nutrition: 100, Hydration: 100, Tiredness: 0, Alertness: 100,
	}
	p := physiologyTick(c, 600)

	assert.InDelta(t, 100-600.0/900.0, *p.Nutrition, 1e-9)
	assert.InDelta(t, 99, *p.Hydration, 1e-9)
	assert.InDelta(t, 1, *p.Tiredness, 1e-9)
	assert.InDelta(t, 100, *p.Alertness, 1e-9)
}

func TestPhysiologyTick_SleepRecovery(t *testing.T) {
	c := &world.Character{
		Nutrition: 50, Hydration: 50, Tiredness: 80, Alertness: 10,
	}
	p := physiologyTick(c, 60)

	assert.InDelta(t, 75, *p.Tiredness, 1e-9)
	assert.InDelta(t, 15, *p.Alertness, 1e-9)
	// Nutrition and hydration drain while asleep too.
	assert.Less(t, *p.Nutrition, 50.0)
	assert.Less(t, *p.Hydration, 50.0)
}

func TestPhysiologyTick_ForcedSleepOnExhaustion(t *testing.T) {
	c := &world.Character{
		Nutrition: 100, Hydration: 100, Tiredness: 99.5, Alertness: 90,
	}

	// A short tick does not cross the threshold.
	p := physiologyTick(c, 10)
	assert.Less(t, *p.Tiredness, 100.0)
	assert.InDelta(t, 90, *p.Alertness, 1e-9)

	// A long one pins tiredness at 100 and zeroes alertness.
	p = physiologyTick(c, 600)
	assert.InDelta(t, 100, *p.Tiredness, 1e-9)
	assert.InDelta(t, 0, *p.Alertness, 1e-9)
}

func TestPhysiologyTick_DamageDecay(t *testing.T) {
	c := &world.Character{
		Nutrition: 100, Hydration: 100, Alertness: 100,
		Damage: []world.DamageEntry{
			{Part: "left arm", Type: "bruise", Severity: 1},
			{Part: "torso", Type: "cut", Severity: 40},
		},
	}

	// Three hours: 1.5 severity points off each entry.
	p := physiologyTick(c, 3*3600)
	require.True(t, p.HasDamage)
	require.Len(t, p.Damage, 1)
	assert.Equal(t, "torso", p.Damage[0].Part)
	assert.InDelta(t, 38.5, p.Damage[0].Severity, 1e-9)
}

func TestBuildContext(t *testing.T) {
	hand := world.HandRight
	areaID := int64(7)
	c := &world.Character{
		ID: 1, Name: "Mira", Age: 27, Species: "human",
		Nutrition: 25, Hydration: 70, Tiredness: 85, Alertness: 40,
		Likes: []string{"rain"},
		Damage: []world.DamageEntry{
			{Part: "left hand", Type: "burn", Severity: 12},
		},
		Memory: []world.MemoryEntry{
			{Action: "picked up Torch", Result: "now holding it"},
		},
		CurrentAreaID: &areaID,
	}
	in := PromptInput{
		Character: c,
		Area: &world.Area{
			ID: areaID, Name: "Meadow", Description: "Tall grass sways here.",
			Temperature: 18,
			Exits:       map[string]int64{"north": 8, "east": 9},
		},
		Inventory: []*world.Item{
			{Name: "Torch", HeldLocation: &hand},
		},
		AreaCharacters: []*world.Character{c, {ID: 2, Name: "Tobin"}},
		AreaItems:      []*world.Item{{Name: "Rusty Key"}},
	}

	out := BuildContext(in)

	assert.Contains(t, out, "You are Mira, 27 years old, human.")
	assert.Contains(t, out, "Likes: rain")
	assert.Contains(t, out, "Nutrition: 25% (very hungry)")
	assert.Contains(t, out, "Tiredness: 85% (extremely tired)")
	assert.Contains(t, out, "Alertness: 40% (drowsy)")
	assert.Contains(t, out, "Injuries: left hand (burn, 12%)")
	assert.Contains(t, out, "Right hand: Torch")
	assert.Contains(t, out, "Left hand: empty")
	assert.Contains(t, out, "You are in: Meadow")
	assert.Contains(t, out, "Exits: east (to area 9), north (to area 8)")
	assert.Contains(t, out, "Also here: Tobin")
	assert.Contains(t, out, "Items here: Rusty Key")
	assert.Contains(t, out, "- picked up Torch -> now holding it")
	assert.Contains(t, out, "single JSON action object")
	assert.NotContains(t, out, "Backstory:")
}

func TestBuildContext_NoArea(t *testing.T) {
	out := BuildContext(PromptInput{Character: &world.Character{Name: "Adrift"}})
	assert.Contains(t, out, "not currently in any specific location")
}

func TestSystemPrompt(t *testing.T) {
	minor := SystemPrompt(world.ClassMinor)
	story := SystemPrompt(world.ClassStory)
	assert.Contains(t, minor, `"action": "move"`)
	assert.NotContains(t, minor, "advance your personal story")
	assert.Contains(t, story, "advance your personal story")
}

type engineFixture struct {
	store  *store.Store
	kernel *kernel.Kernel
	engine *Engine
	stub   *llms.StubProvider

	worldID  int64
	meadowID int64
	forestID int64
	charID   int64
	torchID  int64
}

func newEngineFixture(t *testing.T) *engineFixture {
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

	f := &engineFixture{store: s, kernel: kernel.New(s)}

	f.worldID, err = s.CreateWorld(ctx, "Aldera", "")
	require.NoError(t, err)
	f.meadowID, err = s.CreateArea(ctx, &world.Area{WorldID: f.worldID, Name: "Meadow"})
	require.NoError(t, err)
	f.forestID, err = s.CreateArea(ctx, &world.Area{WorldID: f.worldID, Name: "Forest"})
	require.NoError(t, err)

	meadow, err := s.GetArea(ctx, f.meadowID)
	require.NoError(t, err)
	meadow.Exits = map[string]int64{"north": f.forestID}
	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		return s.UpdateAreaTx(ctx, tx, meadow)
	}))

	f.charID, err = s.CreateCharacter(ctx, &world.Character{
		WorldID: f.worldID, Name: "Mira", Class: world.ClassMinor,
		Alertness: 100, Nutrition: 100, Hydration: 100,
		CurrentAreaID: &f.meadowID,
	})
	require.NoError(t, err)
	f.torchID, err = s.CreateItem(ctx, &world.Item{
		WorldID: f.worldID, Name: "Torch", CurrentAreaID: &f.meadowID,
	})
	require.NoError(t, err)

	f.stub = llms.NewStubProvider(`{"action":"wait"}`)
	router := llms.NewRouter()
	router.Register(world.ClassMinor, func() (llms.TextGenerator, error) {
		return f.stub, nil
	})

	f.engine = New(f.kernel, router, f.worldID, 5*time.Second)
	return f
}

func TestEngine_CycleAppliesActions(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.stub.Enqueue(
		`{"action":"pickup","item":"torch"}`,
		`{"action":"move","direction":"North"}`,
		`{"action":"speak","text":"Anyone here?"`, // truncated by stop string
		`{"action":"wait"}`,
	)

	for i := 0; i < 4; i++ {
		require.NoError(t, f.engine.RunCycle(ctx))
	}

	c, err := f.store.GetCharacter(ctx, f.charID)
	require.NoError(t, err)
	require.NotNil(t, c.CurrentAreaID)
	assert.Equal(t, f.forestID, *c.CurrentAreaID)

	torch, err := f.store.GetItem(ctx, f.torchID)
	require.NoError(t, err)
	require.NotNil(t, torch.HeldByCharacterID)
	assert.Equal(t, f.charID, *torch.HeldByCharacterID)
	require.NotNil(t, torch.HeldLocation)
	assert.Equal(t, world.HandRight, *torch.HeldLocation)

	// Memory recorded the speak and the wait.
	var actions []string
	for _, m := range c.Memory {
		actions = append(actions, m.Action)
	}
	assert.Contains(t, actions, "speech: Anyone here?")
	assert.Contains(t, actions, "waited")

	stats := f.engine.Stats()
	assert.Equal(t, int64(4), stats.Cycles)
	assert.Equal(t, int64(4), stats.ActionsAttempted)
	assert.Equal(t, int64(4), stats.ActionsSucceeded)
	assert.Equal(t, int64(0), stats.ActionsFailed)
}

func TestEngine_InvalidActionCountedNotFatal(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.stub.Enqueue(
		`{"action":"move","direction":"west"}`, // no such exit
		`I shrug and do nothing in particular.`,
		`{"action":"dance"}`,
	)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.engine.RunCycle(ctx))
	}

	// Character never moved.
	c, err := f.store.GetCharacter(ctx, f.charID)
	require.NoError(t, err)
	assert.Equal(t, f.meadowID, *c.CurrentAreaID)

	stats := f.engine.Stats()
	assert.Equal(t, int64(3), stats.ActionsAttempted)
	assert.Equal(t, int64(0), stats.ActionsSucceeded)
	assert.Equal(t, int64(3), stats.ActionsFailed)
}

func TestEngine_SleepActionRemovesEligibility(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.stub.Enqueue(`{"action":"sleep"}`)

	require.NoError(t, f.engine.RunCycle(ctx))

	c, err := f.store.GetCharacter(ctx, f.charID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Alertness)

	// Asleep now, so the next cycle makes no model call.
	calls := len(f.stub.Calls)
	require.NoError(t, f.engine.RunCycle(ctx))
	assert.Equal(t, calls, len(f.stub.Calls))
}

func TestEngine_SleepRecoveryWakesCharacter(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	now := time.Now()
	f.engine.SetNow(func() time.Time { return now })

	f.stub.Enqueue(`{"action":"sleep"}`)
	require.NoError(t, f.engine.RunCycle(ctx))

	c, err := f.store.GetCharacter(ctx, f.charID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Alertness)

	// Ten simulated minutes of sleep recover 50 alertness, so the
	// character crosses the waking threshold and acts again.
	now = now.Add(10 * time.Minute)
	calls := len(f.stub.Calls)
	require.NoError(t, f.engine.RunCycle(ctx))

	c, err = f.store.GetCharacter(ctx, f.charID)
	require.NoError(t, err)
	assert.InDelta(t, 50, c.Alertness, 1e-6)
	assert.Greater(t, len(f.stub.Calls), calls)
}

func TestEngine_OwnedCharactersSkipped(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SetCharacterOwner(ctx, f.charID, ptr("player-1")))

	require.NoError(t, f.engine.RunCycle(ctx))
	assert.Empty(t, f.stub.Calls)
	assert.Equal(t, int64(0), f.engine.Stats().CharactersProcessed)
}

func ptr[T any](v T) *T { return &v }
