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

package session

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Solifugus/storysplicer/pkg/store"
	"github.com/Solifugus/storysplicer/pkg/world"
)

func newTestManager(t *testing.T) (*Manager, *store.Store, int64) {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := store.New(db, "sqlite")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))

	worldID, err := s.CreateWorld(ctx, "Aldera", "")
	require.NoError(t, err)
	charID, err := s.CreateCharacter(ctx, &world.Character{
		WorldID: worldID, Name: "Mira", Alertness: 100,
	})
	require.NoError(t, err)

	return NewManager(s), s, charID
}

func TestClaim_SetsOwnerAndReturnsToken(t *testing.T) {
	m, s, charID := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Claim(ctx, "p1", charID)
	require.NoError(t, err)
	assert.Len(t, sess.Token, 64)
	assert.Equal(t, "p1", sess.PlayerID)
	assert.Equal(t, charID, sess.CharacterID)

	c, err := s.GetCharacter(ctx, charID)
	require.NoError(t, err)
	require.NotNil(t, c.OwnerID)
	assert.Equal(t, "p1", *c.OwnerID)

	ok, err := m.CanControl(ctx, "p1", charID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = m.CanControl(ctx, "p2", charID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaim_Idempotent(t *testing.T) {
	m, _, charID := newTestManager(t)
	ctx := context.Background()

	s1, err := m.Claim(ctx, "p1", charID)
	require.NoError(t, err)
	s2, err := m.Claim(ctx, "p1", charID)
	require.NoError(t, err)
	assert.NotEqual(t, s1.Token, s2.Token)

	// The replacement session validates; the replaced one does not.
	_, ok := m.Validate(s2.Token)
	assert.True(t, ok)
	_, ok = m.Validate(s1.Token)
	assert.False(t, ok)
}

func TestClaim_OwnershipExclusivity(t *testing.T) {
	m, _, charID := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "p1", charID)
	require.NoError(t, err)

	_, err = m.Claim(ctx, "p2", charID)
	assert.True(t, errors.Is(err, world.ErrAlreadyOwned))

	require.NoError(t, m.Release(ctx, charID))

	sess, err := m.Claim(ctx, "p2", charID)
	require.NoError(t, err)
	_, ok := m.Validate(sess.Token)
	assert.True(t, ok)
}

func TestClaim_NotFound(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.Claim(context.Background(), "p1", 9999)
	assert.True(t, errors.Is(err, world.ErrNotFound))
}

func TestValidate_Expiry(t *testing.T) {
	m, _, charID := newTestManager(t)
	ctx := context.Background()

	clock := time.Now()
	m.SetNow(func() time.Time { return clock })

	sess, err := m.Claim(ctx, "p1", charID)
	require.NoError(t, err)

	clock = clock.Add(23 * time.Hour)
	got, ok := m.Validate(sess.Token)
	require.True(t, ok)
	assert.Equal(t, clock, got.LastActivity)

	clock = clock.Add(2 * time.Hour)
	_, ok = m.Validate(sess.Token)
	assert.False(t, ok)

	// Deleted on first failed validation.
	_, ok = m.Validate(sess.Token)
	assert.False(t, ok)
}

func TestRelease_ClearsOwnerAndSessions(t *testing.T) {
	m, s, charID := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Claim(ctx, "p1", charID)
	require.NoError(t, err)

	require.NoError(t, m.Release(ctx, charID))

	c, err := s.GetCharacter(ctx, charID)
	require.NoError(t, err)
	assert.Nil(t, c.OwnerID)

	_, ok := m.Validate(sess.Token)
	assert.False(t, ok)
}

func TestDeleteCharacter_DestroysSessions(t *testing.T) {
	m, s, charID := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Claim(ctx, "p1", charID)
	require.NoError(t, err)

	require.NoError(t, m.DeleteCharacter(ctx, charID))

	_, err = s.GetCharacter(ctx, charID)
	assert.True(t, errors.Is(err, world.ErrNotFound))

	_, ok := m.Validate(sess.Token)
	assert.False(t, ok)
}

func TestSweep(t *testing.T) {
	m, _, charID := newTestManager(t)
	ctx := context.Background()

	clock := time.Now()
	m.SetNow(func() time.Time { return clock })

	_, err := m.Claim(ctx, "p1", charID)
	require.NoError(t, err)

	assert.Equal(t, 0, m.Sweep())

	clock = clock.Add(25 * time.Hour)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, m.Sweep())
}
