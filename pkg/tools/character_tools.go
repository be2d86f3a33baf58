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

	"github.com/Solifugus/storysplicer/pkg/kernel"
	"github.com/Solifugus/storysplicer/pkg/world"
)

// characterView is the composite payload of character_get.
type characterView struct {
	Character *world.Character `json:"character"`
	Inventory []*world.Item    `json:"inventory"`
}

func (s *Service) characterTools() []Tool {
	return []Tool{
		&worldTool{
			info: ToolInfo{
				Name:        "character_get",
				Description: "Fetch a character together with the items it holds.",
				Parameters: []ToolParameter{
					{Name: "character_id", Type: "number", Description: "Character id", Required: true},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := int64Arg(args, "character_id")
				if err != nil {
					return nil, err
				}
				c, err := s.store.GetCharacter(ctx, id)
				if err != nil {
					return nil, err
				}
				inventory, err := s.store.ItemsHeldBy(ctx, id)
				if err != nil {
					return nil, err
				}
				return characterView{Character: c, Inventory: inventory}, nil
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "character_list_awake",
				Description: "List the awake characters of a world.",
				Parameters: []ToolParameter{
					{Name: "world_id", Type: "number", Description: "World id", Required: true},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := int64Arg(args, "world_id")
				if err != nil {
					return nil, err
				}
				return s.store.ListAwake(ctx, id)
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "character_move",
				Description: "Place a character in an area of the same world. Does not require an exit between the areas.",
				Parameters: []ToolParameter{
					{Name: "character_id", Type: "number", Description: "Character id", Required: true},
					{Name: "area_id", Type: "number", Description: "Destination area id", Required: true},
					sessionTokenParam,
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				characterID, err := int64Arg(args, "character_id")
				if err != nil {
					return nil, err
				}
				areaID, err := int64Arg(args, "area_id")
				if err != nil {
					return nil, err
				}
				if err := s.authorize(ctx, args, characterID); err != nil {
					return nil, err
				}
				if err := s.kernel.MoveCharacter(ctx, characterID, areaID); err != nil {
					return nil, err
				}
				return map[string]any{"character_id": characterID, "area_id": areaID}, nil
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "character_speak",
				Description: "Record a character speaking, acting, or thinking in its current area.",
				Parameters: []ToolParameter{
					{Name: "character_id", Type: "number", Description: "Character id", Required: true},
					{Name: "text", Type: "string", Description: "What is said, done, or thought", Required: true},
					{Name: "action_type", Type: "string", Description: "Kind of expression, default speech",
						Enum: []string{kernel.KindSpeech, kernel.KindAction, kernel.KindThought}},
					sessionTokenParam,
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				characterID, err := int64Arg(args, "character_id")
				if err != nil {
					return nil, err
				}
				text, err := stringArg(args, "text")
				if err != nil {
					return nil, err
				}
				kind := optStringArg(args, "action_type")
				if kind == "" {
					kind = kernel.KindSpeech
				}
				if err := s.authorize(ctx, args, characterID); err != nil {
					return nil, err
				}
				if err := s.kernel.Speak(ctx, characterID, text, kind); err != nil {
					return nil, err
				}
				return map[string]any{"character_id": characterID}, nil
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "character_update_state",
				Description: "Patch a character's physiological state. Values clamp to 0-100; exhaustion forces sleep.",
				Parameters: []ToolParameter{
					{Name: "character_id", Type: "number", Description: "Character id", Required: true},
					{Name: "nutrition", Type: "number", Description: "New nutrition percentage"},
					{Name: "hydration", Type: "number", Description: "New hydration percentage"},
					{Name: "tiredness", Type: "number", Description: "New tiredness percentage"},
					{Name: "alertness", Type: "number", Description: "New alertness percentage"},
					{Name: "damage", Type: "array", Description: "Replacement damage list: part, type, severity"},
					sessionTokenParam,
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				characterID, err := int64Arg(args, "character_id")
				if err != nil {
					return nil, err
				}
				if err := s.authorize(ctx, args, characterID); err != nil {
					return nil, err
				}

				var patch kernel.StatePatch
				if patch.Nutrition, err = optFloatArg(args, "nutrition"); err != nil {
					return nil, err
				}
				if patch.Hydration, err = optFloatArg(args, "hydration"); err != nil {
					return nil, err
				}
				if patch.Tiredness, err = optFloatArg(args, "tiredness"); err != nil {
					return nil, err
				}
				if patch.Alertness, err = optFloatArg(args, "alertness"); err != nil {
					return nil, err
				}
				var damage []world.DamageEntry
				present, err := decodeArg(args, "damage", &damage)
				if err != nil {
					return nil, err
				}
				if present {
					patch.Damage = damage
					patch.HasDamage = true
				}

				return s.kernel.UpdateState(ctx, characterID, patch)
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "character_get_inventory",
				Description: "List the items a character holds.",
				Parameters: []ToolParameter{
					{Name: "character_id", Type: "number", Description: "Character id", Required: true},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := int64Arg(args, "character_id")
				if err != nil {
					return nil, err
				}
				return s.store.ItemsHeldBy(ctx, id)
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "character_add_memory",
				Description: "Append an action/result pair to a character's rolling memory.",
				Parameters: []ToolParameter{
					{Name: "character_id", Type: "number", Description: "Character id", Required: true},
					{Name: "action", Type: "string", Description: "What happened", Required: true},
					{Name: "result", Type: "string", Description: "How it turned out", Required: true},
					sessionTokenParam,
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				characterID, err := int64Arg(args, "character_id")
				if err != nil {
					return nil, err
				}
				action, err := stringArg(args, "action")
				if err != nil {
					return nil, err
				}
				result, err := stringArg(args, "result")
				if err != nil {
					return nil, err
				}
				if err := s.authorize(ctx, args, characterID); err != nil {
					return nil, err
				}
				err = s.kernel.AppendMemory(ctx, characterID, world.MemoryEntry{
					Action: action,
					Result: result,
				})
				if err != nil {
					return nil, err
				}
				return map[string]any{"character_id": characterID}, nil
			},
		},
	}
}
