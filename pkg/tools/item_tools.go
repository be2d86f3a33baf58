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

func (s *Service) itemTools() []Tool {
	return []Tool{
		&worldTool{
			info: ToolInfo{
				Name:        "item_get",
				Description: "Fetch one item by id.",
				Parameters: []ToolParameter{
					{Name: "item_id", Type: "number", Description: "Item id", Required: true},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := int64Arg(args, "item_id")
				if err != nil {
					return nil, err
				}
				return s.store.GetItem(ctx, id)
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "item_pickup",
				Description: "Have a character pick up an item from its current area.",
				Parameters: []ToolParameter{
					{Name: "character_id", Type: "number", Description: "Character id", Required: true},
					{Name: "item_id", Type: "number", Description: "Item id", Required: true},
					{Name: "location", Type: "string", Description: "Hold location, default the first free hand"},
					sessionTokenParam,
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				characterID, err := int64Arg(args, "character_id")
				if err != nil {
					return nil, err
				}
				itemID, err := int64Arg(args, "item_id")
				if err != nil {
					return nil, err
				}
				if err := s.authorize(ctx, args, characterID); err != nil {
					return nil, err
				}

				location := optStringArg(args, "location")
				if location == "" {
					if location, err = s.firstFreeHand(ctx, characterID); err != nil {
						return nil, err
					}
				}
				if err := s.kernel.Pickup(ctx, characterID, itemID, location); err != nil {
					return nil, err
				}
				return map[string]any{"item_id": itemID, "location": location}, nil
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "item_drop",
				Description: "Have a character drop a held item into its current area.",
				Parameters: []ToolParameter{
					{Name: "character_id", Type: "number", Description: "Character id", Required: true},
					{Name: "item_id", Type: "number", Description: "Item id", Required: true},
					sessionTokenParam,
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				characterID, err := int64Arg(args, "character_id")
				if err != nil {
					return nil, err
				}
				itemID, err := int64Arg(args, "item_id")
				if err != nil {
					return nil, err
				}
				if err := s.authorize(ctx, args, characterID); err != nil {
					return nil, err
				}
				if err := s.kernel.Drop(ctx, characterID, itemID); err != nil {
					return nil, err
				}
				return map[string]any{"item_id": itemID}, nil
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "item_create",
				Description: "Create an item, optionally placing it in an area.",
				Parameters: []ToolParameter{
					{Name: "world_id", Type: "number", Description: "World id", Required: true},
					{Name: "name", Type: "string", Description: "Item name", Required: true},
					{Name: "description", Type: "string", Description: "Item description"},
					{Name: "properties", Type: "object", Description: "Free-form item properties"},
					{Name: "area_id", Type: "number", Description: "Area to place the item in"},
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
				areaID, err := optInt64Arg(args, "area_id")
				if err != nil {
					return nil, err
				}

				item := &world.Item{
					WorldID:       worldID,
					Name:          name,
					Description:   optStringArg(args, "description"),
					CurrentAreaID: areaID,
				}
				if _, err := decodeArg(args, "properties", &item.Properties); err != nil {
					return nil, err
				}

				id, err := s.store.CreateItem(ctx, item)
				if err != nil {
					return nil, err
				}
				return map[string]any{"item_id": id}, nil
			},
		},
	}
}

// firstFreeHand prefers the right hand, then the left.
func (s *Service) firstFreeHand(ctx context.Context, characterID int64) (string, error) {
	held, err := s.store.ItemsHeldBy(ctx, characterID)
	if err != nil {
		return "", err
	}
	occupied := map[string]bool{}
	for _, item := range held {
		if item.HeldLocation != nil {
			occupied[*item.HeldLocation] = true
		}
	}
	if !occupied[world.HandRight] {
		return world.HandRight, nil
	}
	if !occupied[world.HandLeft] {
		return world.HandLeft, nil
	}
	return "", world.Errorf(world.CodeBothHandsFull, "both hands are full")
}
