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
	"github.com/Solifugus/storysplicer/pkg/session"
	"github.com/Solifugus/storysplicer/pkg/store"
	"github.com/Solifugus/storysplicer/pkg/world"
)

// Service binds the tool catalogue to the kernel, store, and session
// manager. One Service backs one server instance.
type Service struct {
	store    *store.Store
	kernel   *kernel.Kernel
	sessions *session.Manager
}

func NewService(k *kernel.Kernel, sessions *session.Manager) *Service {
	return &Service{store: k.Store(), kernel: k, sessions: sessions}
}

// Register adds the full tool catalogue to a registry.
func (s *Service) Register(r *Registry) error {
	var all []Tool
	all = append(all, s.worldTools()...)
	all = append(all, s.areaTools()...)
	all = append(all, s.characterTools()...)
	all = append(all, s.itemTools()...)
	all = append(all, s.sessionTools()...)

	for _, t := range all {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// sessionTokenParam is appended to every character-mutating tool.
// Local stdio callers may omit it; remote callers may not.
var sessionTokenParam = ToolParameter{
	Name:        "session_token",
	Type:        "string",
	Description: "Session token proving control of the target character. Required over remote transports.",
}

// authorize enforces the remote-transport ownership policy: a mutation
// of a character must come from the player whose session holds it.
// Local callers (the scheduler, stdio automation) bypass the check.
func (s *Service) authorize(ctx context.Context, args map[string]any, characterID int64) error {
	if !IsRemote(ctx) {
		return nil
	}
	token := optStringArg(args, "session_token")
	if token == "" {
		return world.Validationf("session_token is required over remote transports")
	}
	sess, ok := s.sessions.Validate(token)
	if !ok {
		return world.Validationf("invalid or expired session token")
	}
	// Ownership is checked against the database, not the session's claim
	// snapshot, so a release or re-claim elsewhere takes effect at once.
	controls, err := s.sessions.CanControl(ctx, sess.PlayerID, characterID)
	if err != nil {
		return err
	}
	if !controls {
		return world.Errorf(world.CodeAlreadyOwned,
			"session does not control character %d", characterID)
	}
	return nil
}
