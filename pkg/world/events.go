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

package world

// Event types emitted by kernel mutators after commit.
const (
	EventCharacterEnters = "character_enters"
	EventCharacterSpeech = "character_speech"
	EventItemPickedUp    = "item_picked_up"
	EventItemDropped     = "item_dropped"
)

// Event describes a committed kernel mutation delivered to area triggers.
// AreaID is the area the event occurred in. Text is set for speech events.
type Event struct {
	Type        string `json:"type"`
	WorldID     int64  `json:"world_id"`
	AreaID      int64  `json:"area_id"`
	CharacterID int64  `json:"character_id,omitempty"`
	ItemID      int64  `json:"item_id,omitempty"`
	Text        string `json:"text,omitempty"`
}
