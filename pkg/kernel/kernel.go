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

// Package kernel implements the invariant-preserving mutators over world
// state. Every operation refetches its subjects inside a transaction,
// applies the change atomically, and emits events to the trigger layer
// only after commit.
package kernel

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/Solifugus/storysplicer/pkg/store"
	"github.com/Solifugus/storysplicer/pkg/world"
)

// Speech kinds accepted by Speak.
const (
	KindSpeech  = "speech"
	KindAction  = "action"
	KindThought = "thought"
)

// EventSink receives events after a mutation commits. The trigger engine
// is the sole subscriber.
type EventSink interface {
	HandleEvent(ctx context.Context, ev world.Event) error
}

// Kernel is the sole writer of mutating operations against the store.
type Kernel struct {
	store *store.Store
	sink  EventSink
	now   func() time.Time
}

// New creates a kernel over a store. Events are emitted once a sink is
// attached with SetSink.
func New(s *store.Store) *Kernel {
	return &Kernel{store: s, now: time.Now}
}

// SetSink attaches the event subscriber.
func (k *Kernel) SetSink(sink EventSink) {
	k.sink = sink
}

// SetNow overrides the clock, for tests.
func (k *Kernel) SetNow(now func() time.Time) {
	k.now = now
}

// Store exposes the underlying store for read paths.
func (k *Kernel) Store() *store.Store {
	return k.store
}

// deliver sends committed events to the sink. Sink failures are logged,
// not surfaced: the mutation has already committed. Trigger reactions
// write through the store directly and never reach this path, so a firing
// trigger cannot re-enter the trigger layer.
func (k *Kernel) deliver(ctx context.Context, events []world.Event) {
	if k.sink == nil {
		return
	}
	for _, ev := range events {
		if err := k.sink.HandleEvent(ctx, ev); err != nil {
			slog.Error("Event handling failed", "event", ev.Type, "area", ev.AreaID, "error", err)
		}
	}
}

// MoveCharacter relocates a character to the target area. The kernel does
// not consult exits; exit gating belongs to the caller. This allows
// narrator and trigger driven teleports.
func (k *Kernel) MoveCharacter(ctx context.Context, characterID, targetAreaID int64) error {
	var ev world.Event
	err := k.store.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := k.store.GetCharacterTx(ctx, tx, characterID)
		if err != nil {
			return err
		}
		a, err := k.store.GetAreaTx(ctx, tx, targetAreaID)
		if err != nil {
			return err
		}
		if a.WorldID != c.WorldID {
			return world.Errorf(world.CodeCrossWorld,
				"area %d is in world %d, character %d is in world %d",
				a.ID, a.WorldID, c.ID, c.WorldID)
		}
		if err := k.store.SetCharacterAreaTx(ctx, tx, characterID, &targetAreaID); err != nil {
			return err
		}
		ev = world.Event{
			Type:        world.EventCharacterEnters,
			WorldID:     c.WorldID,
			AreaID:      targetAreaID,
			CharacterID: characterID,
		}
		return nil
	})
	if err != nil {
		return err
	}
	k.deliver(ctx, []world.Event{ev})
	return nil
}

// Pickup puts an item into a character's holding slot. The item must lie
// in the character's current area; a hand slot must be free.
func (k *Kernel) Pickup(ctx context.Context, characterID, itemID int64, holdLocation string) error {
	var ev world.Event
	err := k.store.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := k.store.GetCharacterTx(ctx, tx, characterID)
		if err != nil {
			return err
		}
		item, err := k.store.GetItemTx(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if c.CurrentAreaID == nil {
			return world.Errorf(world.CodeNoArea, "character %d is not in any area", characterID)
		}
		if item.CurrentAreaID == nil || *item.CurrentAreaID != *c.CurrentAreaID {
			return world.Errorf(world.CodeNotHere, "item %d is not in character %d's area", itemID, characterID)
		}
		if holdLocation == "" {
			return world.Validationf("hold location is required")
		}

		if holdLocation == world.HandRight || holdLocation == world.HandLeft {
			held, err := k.store.ItemsHeldByTx(ctx, tx, characterID)
			if err != nil {
				return err
			}
			for _, h := range held {
				if h.HeldLocation != nil && *h.HeldLocation == holdLocation {
					return world.Errorf(world.CodeSlotOccupied,
						"character %d already holds %s in %s", characterID, h.Name, holdLocation)
				}
			}
		}

		if err := k.store.SetItemLocationTx(ctx, tx, itemID, nil, &characterID, &holdLocation); err != nil {
			return err
		}
		if err := k.appendMemoryTx(ctx, tx, c, world.MemoryEntry{
			Action: "picked up " + item.Name,
			Result: "now holding in " + holdLocation,
		}); err != nil {
			return err
		}
		ev = world.Event{
			Type:        world.EventItemPickedUp,
			WorldID:     c.WorldID,
			AreaID:      *c.CurrentAreaID,
			CharacterID: characterID,
			ItemID:      itemID,
		}
		return nil
	})
	if err != nil {
		return err
	}
	k.deliver(ctx, []world.Event{ev})
	return nil
}

// Drop places a held item into the character's current area, clearing
// both hold fields atomically.
func (k *Kernel) Drop(ctx context.Context, characterID, itemID int64) error {
	var ev world.Event
	err := k.store.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := k.store.GetCharacterTx(ctx, tx, characterID)
		if err != nil {
			return err
		}
		item, err := k.store.GetItemTx(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.HeldByCharacterID == nil || *item.HeldByCharacterID != characterID {
			return world.Errorf(world.CodeNotHolding,
				"character %d is not holding item %d", characterID, itemID)
		}
		if c.CurrentAreaID == nil {
			return world.Errorf(world.CodeNoArea, "character %d is not in any area", characterID)
		}

		if err := k.store.SetItemLocationTx(ctx, tx, itemID, c.CurrentAreaID, nil, nil); err != nil {
			return err
		}
		if err := k.appendMemoryTx(ctx, tx, c, world.MemoryEntry{
			Action: "dropped " + item.Name,
			Result: "no longer holding it",
		}); err != nil {
			return err
		}
		ev = world.Event{
			Type:        world.EventItemDropped,
			WorldID:     c.WorldID,
			AreaID:      *c.CurrentAreaID,
			CharacterID: characterID,
			ItemID:      itemID,
		}
		return nil
	})
	if err != nil {
		return err
	}
	k.deliver(ctx, []world.Event{ev})
	return nil
}

// StatePatch is a partial physiology update. Nil fields are untouched.
type StatePatch struct {
	Nutrition *float64
	Hydration *float64
	Tiredness *float64
	Alertness *float64
	Damage    []world.DamageEntry
	HasDamage bool
}

// UpdateState applies a partial physiology update, clamping percentages
// and enforcing the forced-sleep rule. Emits no events.
func (k *Kernel) UpdateState(ctx context.Context, characterID int64, patch StatePatch) (*world.Character, error) {
	var updated *world.Character
	err := k.store.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := k.store.GetCharacterTx(ctx, tx, characterID)
		if err != nil {
			return err
		}

		if patch.Nutrition != nil {
			c.Nutrition = world.ClampPercent(*patch.Nutrition)
		}
		if patch.Hydration != nil {
			c.Hydration = world.ClampPercent(*patch.Hydration)
		}
		if patch.Tiredness != nil {
			c.Tiredness = world.ClampPercent(*patch.Tiredness)
		}
		if patch.Alertness != nil {
			c.Alertness = world.ClampPercent(*patch.Alertness)
		}
		if patch.HasDamage {
			for i := range patch.Damage {
				patch.Damage[i].Severity = world.ClampPercent(patch.Damage[i].Severity)
			}
			c.Damage = patch.Damage
		}

		// Exhaustion forces sleep on the same update.
		if c.Tiredness >= 100 {
			c.Tiredness = 100
			c.Alertness = 0
		}

		if err := k.store.UpdateCharacterStateTx(ctx, tx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Speak records a communication in the character's memory. Speech in an
// area additionally emits a character_speech event.
func (k *Kernel) Speak(ctx context.Context, characterID int64, text, kind string) error {
	switch kind {
	case KindSpeech, KindAction, KindThought:
	default:
		return world.Validationf("invalid speech kind %q (valid: speech, action, thought)", kind)
	}

	var events []world.Event
	err := k.store.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := k.store.GetCharacterTx(ctx, tx, characterID)
		if err != nil {
			return err
		}
		if err := k.appendMemoryTx(ctx, tx, c, world.MemoryEntry{
			Action: kind + ": " + text,
			Result: "communicated",
		}); err != nil {
			return err
		}
		if kind == KindSpeech && c.CurrentAreaID != nil {
			events = append(events, world.Event{
				Type:        world.EventCharacterSpeech,
				WorldID:     c.WorldID,
				AreaID:      *c.CurrentAreaID,
				CharacterID: characterID,
				Text:        text,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	k.deliver(ctx, events)
	return nil
}

// AppendMemory records an entry in the character's rolling memory,
// timestamping it and enforcing the class tail cap.
func (k *Kernel) AppendMemory(ctx context.Context, characterID int64, entry world.MemoryEntry) error {
	return k.store.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := k.store.GetCharacterTx(ctx, tx, characterID)
		if err != nil {
			return err
		}
		return k.appendMemoryTx(ctx, tx, c, entry)
	})
}

func (k *Kernel) appendMemoryTx(ctx context.Context, tx *sql.Tx, c *world.Character, entry world.MemoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = k.now()
	}
	memory := world.TrimMemory(append(c.Memory, entry), c.MemoryCap())
	c.Memory = memory
	return k.store.SetCharacterMemoryTx(ctx, tx, c.ID, memory)
}
