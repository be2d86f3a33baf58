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
)

func (s *Service) sessionTools() []Tool {
	return []Tool{
		&worldTool{
			info: ToolInfo{
				Name:        "session_claim",
				Description: "Claim control of a character for a player and return a session token. Claimed characters are skipped by the scheduler.",
				Parameters: []ToolParameter{
					{Name: "player_id", Type: "string", Description: "Stable player identifier", Required: true},
					{Name: "character_id", Type: "number", Description: "Character id", Required: true},
				},
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				playerID, err := stringArg(args, "player_id")
				if err != nil {
					return nil, err
				}
				characterID, err := int64Arg(args, "character_id")
				if err != nil {
					return nil, err
				}
				sess, err := s.sessions.Claim(ctx, playerID, characterID)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"session_token": sess.Token,
					"player_id":     sess.PlayerID,
					"character_id":  sess.CharacterID,
				}, nil
			},
		},
		&worldTool{
			info: ToolInfo{
				Name:        "session_release",
				Description: "Release control of a character, returning it to the scheduler.",
				Parameters: []ToolParameter{
					{Name: "character_id", Type: "number", Description: "Character id", Required: true},
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
				if err := s.sessions.Release(ctx, characterID); err != nil {
					return nil, err
				}
				return map[string]any{"character_id": characterID}, nil
			},
		},
	}
}
