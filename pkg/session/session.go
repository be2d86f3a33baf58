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

// Package session implements single-owner character claims backed by
// token-bearing sessions. Sessions live in process memory; scaling out
// horizontally requires externalizing this map.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Solifugus/storysplicer/pkg/store"
	"github.com/Solifugus/storysplicer/pkg/world"
)

// TTL is the maximum session lifetime from creation.
const TTL = 24 * time.Hour

// sweepInterval is the cadence of expired-session garbage collection.
const sweepInterval = time.Hour

// Session ties a player to a claimed character.
type Session struct {
	Token        string    `json:"token"`
	PlayerID     string    `json:"player_id"`
	CharacterID  int64     `json:"character_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Manager owns the token map and the character ownership column.
type Manager struct {
	store *store.Store

	mu       sync.Mutex
	sessions map[string]*Session

	now func() time.Time
}

// NewManager creates a session manager over a store.
func NewManager(s *store.Store) *Manager {
	return &Manager{
		store:    s,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (m *Manager) SetNow(now func() time.Time) {
	m.now = now
}

// newToken returns an opaque 256-bit hex token.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Claim gives a player exclusive control over a character and returns a
// session token. Claiming a character already owned by the same player is
// idempotent and returns a fresh session.
func (m *Manager) Claim(ctx context.Context, playerID string, characterID int64) (*Session, error) {
	if playerID == "" {
		return nil, world.Validationf("player id is required")
	}

	c, err := m.store.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != nil && *c.OwnerID != playerID {
		return nil, world.Errorf(world.CodeAlreadyOwned,
			"character %d is already controlled by another player", characterID)
	}

	if c.OwnerID == nil {
		if err := m.store.SetCharacterOwner(ctx, characterID, &playerID); err != nil {
			return nil, err
		}
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	sess := &Session{
		Token:        token,
		PlayerID:     playerID,
		CharacterID:  characterID,
		CreatedAt:    now,
		LastActivity: now,
	}

	m.mu.Lock()
	// A character has at most one live session. A re-claim by the same
	// player replaces any previous session for the character.
	for tok, s := range m.sessions {
		if s.CharacterID == characterID {
			delete(m.sessions, tok)
		}
	}
	m.sessions[token] = sess
	m.mu.Unlock()

	slog.Info("Character claimed", "character", characterID, "player", playerID)
	return sess, nil
}

// Validate returns the session for a token if it exists and is within its
// lifetime, touching last activity. Expired sessions are deleted.
func (m *Manager) Validate(token string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[token]
	if !ok {
		return nil, false
	}
	if m.now().Sub(sess.CreatedAt) > TTL {
		delete(m.sessions, token)
		return nil, false
	}
	sess.LastActivity = m.now()
	return sess, true
}

// Release clears a character's owner and removes every session for it.
func (m *Manager) Release(ctx context.Context, characterID int64) error {
	if err := m.store.SetCharacterOwner(ctx, characterID, nil); err != nil {
		return err
	}

	m.mu.Lock()
	for tok, s := range m.sessions {
		if s.CharacterID == characterID {
			delete(m.sessions, tok)
		}
	}
	m.mu.Unlock()

	slog.Info("Character released", "character", characterID)
	return nil
}

// DeleteCharacter removes a character from the world and destroys every
// session bound to it, so stale tokens stop validating.
func (m *Manager) DeleteCharacter(ctx context.Context, characterID int64) error {
	if err := m.store.DeleteCharacter(ctx, characterID); err != nil {
		return err
	}

	m.mu.Lock()
	for tok, s := range m.sessions {
		if s.CharacterID == characterID {
			delete(m.sessions, tok)
		}
	}
	m.mu.Unlock()

	slog.Info("Character deleted", "character", characterID)
	return nil
}

// CanControl reports whether the player currently owns the character.
func (m *Manager) CanControl(ctx context.Context, playerID string, characterID int64) (bool, error) {
	c, err := m.store.GetCharacter(ctx, characterID)
	if err != nil {
		return false, err
	}
	return c.OwnerID != nil && *c.OwnerID == playerID, nil
}

// Sweep removes sessions past their lifetime and returns how many were
// dropped.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dropped := 0
	for tok, s := range m.sessions {
		if now.Sub(s.CreatedAt) > TTL {
			delete(m.sessions, tok)
			dropped++
		}
	}
	return dropped
}

// StartSweeper runs hourly garbage collection until the context is done.
func (m *Manager) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					slog.Debug("Swept expired sessions", "count", n)
				}
			}
		}
	}()
}
