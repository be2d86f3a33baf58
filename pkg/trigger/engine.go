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

// Package trigger interprets the reactive rules stored on areas. Triggers
// are data, not code: the engine matches committed kernel events against
// each area's trigger list and applies the declared reactions.
package trigger

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/Solifugus/storysplicer/pkg/kernel"
	"github.com/Solifugus/storysplicer/pkg/store"
	"github.com/Solifugus/storysplicer/pkg/world"
)

// Engine fires area triggers in response to kernel events. All reactions
// for one event run in a single transaction; they write through the store
// and emit no further events, so one event fires exactly one quiescent
// layer of reactions.
type Engine struct {
	store *store.Store
}

// New creates a trigger engine over a store.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// HandleEvent matches the event against the area's triggers and executes
// the reactions of every match, in declared order. One-time triggers are
// removed from the area after their reactions complete.
func (e *Engine) HandleEvent(ctx context.Context, ev world.Event) error {
	if ev.AreaID == 0 {
		return nil
	}

	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		area, err := e.store.GetAreaTx(ctx, tx, ev.AreaID)
		if err != nil {
			return err
		}

		var matched []int
		for i := range area.Triggers {
			if area.Triggers[i].Condition.Matches(ev) {
				matched = append(matched, i)
			}
		}
		if len(matched) == 0 {
			return nil
		}

		for _, i := range matched {
			for _, reaction := range area.Triggers[i].Reactions {
				if err := e.applyReaction(ctx, tx, area, &reaction); err != nil {
					return err
				}
			}
		}

		// Drop one-time triggers that fired, preserving order of the rest.
		fired := make(map[int]bool, len(matched))
		for _, i := range matched {
			if area.Triggers[i].OneTime {
				fired[i] = true
			}
		}
		if len(fired) > 0 {
			remaining := area.Triggers[:0]
			for i := range area.Triggers {
				if !fired[i] {
					remaining = append(remaining, area.Triggers[i])
				}
			}
			area.Triggers = remaining
		}

		slog.Debug("Triggers fired", "area", area.ID, "event", ev.Type, "count", len(matched))
		return e.store.UpdateAreaTx(ctx, tx, area)
	})
}

func (e *Engine) applyReaction(ctx context.Context, tx *sql.Tx, area *world.Area, r *world.Reaction) error {
	switch r.Type {
	case world.ReactionAddItem:
		if r.Item == nil {
			slog.Warn("add_item reaction without item template", "area", area.ID)
			return nil
		}
		_, err := e.store.CreateItemTx(ctx, tx, &world.Item{
			WorldID:       area.WorldID,
			Name:          r.Item.Name,
			Description:   r.Item.Description,
			Properties:    r.Item.Properties,
			CurrentAreaID: &area.ID,
		})
		return err

	case world.ReactionRemoveItem:
		item, err := e.store.GetItemTx(ctx, tx, r.ItemID)
		if err != nil || item.WorldID != area.WorldID {
			// Missing or foreign items are silently skipped.
			slog.Debug("remove_item reaction skipped", "area", area.ID, "item", r.ItemID)
			return nil
		}
		return e.store.DeleteItemTx(ctx, tx, r.ItemID)

	case world.ReactionAddExit:
		if area.Exits == nil {
			area.Exits = make(map[string]int64)
		}
		area.Exits[world.NormalizeDirection(r.Direction)] = r.TargetAreaID
		return nil

	case world.ReactionRemoveExit:
		delete(area.Exits, world.NormalizeDirection(r.Direction))
		return nil

	case world.ReactionModifyDescription, world.ReactionAppendDescription:
		// append_description also appears as a standalone reaction kind in
		// older trigger configs; both spellings are accepted.
		switch {
		case r.NewDescription != nil:
			area.Description = *r.NewDescription
		case r.AppendDescription != nil:
			area.Description += *r.AppendDescription
		default:
			slog.Warn("description reaction without text", "area", area.ID)
		}
		return nil

	case world.ReactionModifyTemperature:
		switch {
		case r.Temperature != nil:
			area.Temperature = *r.Temperature
		case r.TemperatureDelta != nil:
			area.Temperature += *r.TemperatureDelta
		default:
			slog.Warn("modify_temperature reaction without value", "area", area.ID)
		}
		return nil

	default:
		slog.Warn("Unknown trigger reaction", "area", area.ID, "type", r.Type)
		return nil
	}
}

// Compile-time interface check
var _ kernel.EventSink = (*Engine)(nil)
