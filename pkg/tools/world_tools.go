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

	"github.com/Solifugus/storysplicer/pkg/world"
)

func (s *Service) worldTools() []Tool {
	return []Tool{
		&worldTool{
			info: ToolInfo{
				Name:        "world_list",
				Description: "List every world with its id, name, and description.",
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.store.ListWorlds(ctx)
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "world_get",
				Description: "Fetch one world by id.",
				Parameters: []ToolParameter{
					{Name: "world_id", Type: "number", Description: "World id", Required: true},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := int64Arg(args, "world_id")
				if err != nil {
					return nil, err
				}
				return s.store.GetWorld(ctx, id)
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "world_create",
				Description: "Create a world and return its id.",
				Parameters: []ToolParameter{
					{Name: "name", Type: "string", Description: "World name", Required: true},
					{Name: "description", Type: "string", Description: "World description"},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				name, err := stringArg(args, "name")
				if err != nil {
					return nil, err
				}
				id, err := s.store.CreateWorld(ctx, name, optStringArg(args, "description"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"world_id": id}, nil
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "world_get_writing_style",
				Description: "Fetch the writing style guidance for a world.",
				Parameters: []ToolParameter{
					{Name: "world_id", Type: "number", Description: "World id", Required: true},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := int64Arg(args, "world_id")
				if err != nil {
					return nil, err
				}
				return s.store.GetWritingStyle(ctx, id)
			},
		},
	}
}

// areaView is the composite payload of area_get.
type areaView struct {
	Area       *world.Area        `json:"area"`
	Characters []*world.Character `json:"characters"`
	Items      []*world.Item      `json:"items"`
}

func (s *Service) areaTools() []Tool {
	return []Tool{
		&worldTool{
			info: ToolInfo{
				Name:        "area_list",
				Description: "List every area in a world.",
				Parameters: []ToolParameter{
					{Name: "world_id", Type: "number", Description: "World id", Required: true},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := int64Arg(args, "world_id")
				if err != nil {
					return nil, err
				}
				return s.store.ListAreas(ctx, id)
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "area_get",
				Description: "Fetch an area together with the characters and items present in it.",
				Parameters: []ToolParameter{
					{Name: "area_id", Type: "number", Description: "Area id", Required: true},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := int64Arg(args, "area_id")
				if err != nil {
					return nil, err
				}
				area, err := s.store.GetArea(ctx, id)
				if err != nil {
					return nil, err
				}
				chars, err := s.store.CharactersInArea(ctx, id)
				if err != nil {
					return nil, err
				}
				items, err := s.store.ItemsInArea(ctx, id)
				if err != nil {
					return nil, err
				}
				return areaView{Area: area, Characters: chars, Items: items}, nil
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "area_get_characters",
				Description: "List the characters currently in an area.",
				Parameters: []ToolParameter{
					{Name: "area_id", Type: "number", Description: "Area id", Required: true},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := int64Arg(args, "area_id")
				if err != nil {
					return nil, err
				}
				return s.store.CharactersInArea(ctx, id)
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "area_get_items",
				Description: "List the items lying in an area.",
				Parameters: []ToolParameter{
					{Name: "area_id", Type: "number", Description: "Area id", Required: true},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := int64Arg(args, "area_id")
				if err != nil {
					return nil, err
				}
				return s.store.ItemsInArea(ctx, id)
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "area_create",
				Description: "Create an area in a world and return its id.",
				Parameters: []ToolParameter{
					{Name: "world_id", Type: "number", Description: "World id", Required: true},
					{Name: "name", Type: "string", Description: "Area name", Required: true},
					{Name: "description", Type: "string", Description: "Area description"},
					{Name: "temperature", Type: "number", Description: "Temperature in Celsius, default 20"},
					{Name: "exits", Type: "object", Description: "Direction label to target area id"},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				worldID, err := int64Arg(args, "world_id")
				if err != nil {
					return nil, err
				}
				name, err := stringArg(args, "name")
				if err != nil {
					return nil, err
				}
				temperature, err := floatArgOr(args, "temperature", 20)
				if err != nil {
					return nil, err
				}

				a := &world.Area{
					WorldID:     worldID,
					Name:        name,
					Description: optStringArg(args, "description"),
					Temperature: temperature,
				}
				var exits map[string]int64
				if _, err := decodeArg(args, "exits", &exits); err != nil {
					return nil, err
				}
				if len(exits) > 0 {
					a.Exits = make(map[string]int64, len(exits))
					for dir, target := range exits {
						a.Exits[world.NormalizeDirection(dir)] = target
					}
				}

				id, err := s.store.CreateArea(ctx, a)
				if err != nil {
					return nil, err
				}
				return map[string]any{"area_id": id}, nil
			},
		},
	}
}
