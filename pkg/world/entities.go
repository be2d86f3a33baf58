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

// Package world defines the entity model for the simulator: worlds, areas,
// characters, items, triggers, and the events kernel mutations emit.
package world

import (
	"strings"
	"time"
)

// Character classes. Story characters get the larger model tier and a
// longer memory tail.
const (
	ClassStory = "story"
	ClassMinor = "minor"
)

// AwakeThreshold is the minimum alertness for a character to act.
const AwakeThreshold = 20.0

// Hand slot labels. The two hands are the only slots checked for occupancy;
// other hold locations (pockets, straps) are free-form.
const (
	HandRight = "right hand"
	HandLeft  = "left hand"
)

// World is the top-level container. Deleting a world cascades to all
// areas, characters, items, styles, and series it owns.
type World struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Area is a location within a world. Exits map lowercased direction labels
// to area ids. Dangling exit targets are tolerated on read.
type Area struct {
	ID          int64            `json:"id"`
	WorldID     int64            `json:"world_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Temperature float64          `json:"temperature"`
	Exits       map[string]int64 `json:"exits"`
	Triggers    []Trigger        `json:"triggers"`
}

// MemoryEntry is one remembered event in a character's rolling memory.
type MemoryEntry struct {
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// DamageEntry records an injury to a body part. Severity is a percentage
// that decays over time.
type DamageEntry struct {
	Part     string  `json:"part"`
	Type     string  `json:"type"`
	Severity float64 `json:"severity"`
}

// Character is an autonomous agent. All percentage fields are clamped
// to [0, 100].
type Character struct {
	ID      int64  `json:"id"`
	WorldID int64  `json:"world_id"`
	Name    string `json:"name"`
	Species string `json:"species"`
	Gender  string `json:"gender"`
	Age     int    `json:"age"`

	Description string `json:"description"`
	Backstory   string `json:"backstory"`

	Memory           []MemoryEntry `json:"memory"`
	Likes            []string      `json:"likes"`
	Dislikes         []string      `json:"dislikes"`
	Interests        []string      `json:"interests"`
	Beliefs          []string      `json:"beliefs"`
	InternalConflict string        `json:"internal_conflict"`

	Nutrition float64       `json:"nutrition"`
	Hydration float64       `json:"hydration"`
	Tiredness float64       `json:"tiredness"`
	Alertness float64       `json:"alertness"`
	Damage    []DamageEntry `json:"damage"`

	CurrentAreaID *int64 `json:"current_area_id"`

	OwnerID *string `json:"owner_id"`
	Class   string  `json:"character_class"`
}

// IsAwake reports whether the character can act this cycle.
func (c *Character) IsAwake() bool {
	return c.Alertness >= AwakeThreshold
}

// MemoryCap returns the maximum retained memory tail for the character's
// class: 5 for story characters, 3 for minor.
func (c *Character) MemoryCap() int {
	if c.Class == ClassStory {
		return 5
	}
	return 3
}

// TrimMemory drops the oldest entries so that at most cap remain.
func TrimMemory(entries []MemoryEntry, cap int) []MemoryEntry {
	if len(entries) <= cap {
		return entries
	}
	return entries[len(entries)-cap:]
}

// Item is an object located either in an area or held by a character,
// never both.
type Item struct {
	ID          int64          `json:"id"`
	WorldID     int64          `json:"world_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Properties  map[string]any `json:"properties"`

	CurrentAreaID     *int64  `json:"current_area_id"`
	HeldByCharacterID *int64  `json:"held_by_character_id"`
	HeldLocation      *string `json:"held_location"`
}

// IsHeld reports whether the item is in a character's possession.
func (i *Item) IsHeld() bool {
	return i.HeldByCharacterID != nil
}

// WritingStyle configures prose generation for a world. The simulator
// only reads it.
type WritingStyle struct {
	ID          int64  `json:"id"`
	WorldID     int64  `json:"world_id"`
	Tone        string `json:"tone"`
	Perspective string `json:"perspective"`
	Pacing      string `json:"pacing"`
	Themes      string `json:"themes"`
	Notes       string `json:"notes"`
}

// Series groups books within a world.
type Series struct {
	ID          int64  `json:"id"`
	WorldID     int64  `json:"world_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Book statuses.
const (
	BookStatusDraft     = "draft"
	BookStatusWriting   = "writing"
	BookStatusComplete  = "complete"
	BookStatusPublished = "published"
)

// Book belongs to a series.
type Book struct {
	ID       int64  `json:"id"`
	SeriesID int64  `json:"series_id"`
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Status   string `json:"status"`
}

// Chapter statuses.
const (
	ChapterStatusCollecting = "collecting"
	ChapterStatusDrafted    = "drafted"
	ChapterStatusRevised    = "revised"
	ChapterStatusFinal      = "final"
)

// Chapter belongs to a book. RawEvents keeps the simulation transcript
// the prose was drafted from.
type Chapter struct {
	ID        int64  `json:"id"`
	BookID    int64  `json:"book_id"`
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	RawEvents []any  `json:"raw_events"`
	Status    string `json:"status"`
}

// ClampPercent clamps a percentage value to [0, 100].
func ClampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// NormalizeDirection lowercases and trims a direction label for exit lookup.
func NormalizeDirection(dir string) string {
	return strings.ToLower(strings.TrimSpace(dir))
}
