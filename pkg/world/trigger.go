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

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Trigger is a reactive rule stored on an area. When a matching event
// fires, the reactions run in declared order. One-time triggers are
// removed after their reactions complete.
type Trigger struct {
	Condition Condition  `json:"condition"`
	Reactions []Reaction `json:"reactions"`
	OneTime   bool       `json:"one_time,omitempty"`
}

// Condition matches events against a trigger. The serialized form is
// either a bare event-type string or an object with optional filters.
type Condition struct {
	Type        string   `json:"type"`
	Keywords    []string `json:"keywords,omitempty"`
	CharacterID *int64   `json:"character_id,omitempty"`
	ItemID      *int64   `json:"item_id,omitempty"`
}

// UnmarshalJSON accepts both condition forms: "character_enters" and
// {"type": "character_speech", "keywords": [...]}.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Condition{Type: s}
		return nil
	}

	type plain Condition
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid trigger condition: %w", err)
	}
	*c = Condition(p)
	return nil
}

// MarshalJSON emits the compact string form when no filters are set.
func (c Condition) MarshalJSON() ([]byte, error) {
	if len(c.Keywords) == 0 && c.CharacterID == nil && c.ItemID == nil {
		return json.Marshal(c.Type)
	}
	type plain Condition
	return json.Marshal(plain(c))
}

// Matches reports whether the condition matches the event.
// Keyword filters only apply to speech events and match case-insensitive
// substrings of the spoken text.
func (c *Condition) Matches(ev Event) bool {
	if c.Type != ev.Type {
		return false
	}
	if len(c.Keywords) > 0 && ev.Type == EventCharacterSpeech {
		lower := strings.ToLower(ev.Text)
		found := false
		for _, kw := range c.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.CharacterID != nil && ev.CharacterID != *c.CharacterID {
		return false
	}
	if c.ItemID != nil && ev.ItemID != *c.ItemID {
		return false
	}
	return true
}

// Reaction kinds.
const (
	ReactionAddItem           = "add_item"
	ReactionRemoveItem        = "remove_item"
	ReactionAddExit           = "add_exit"
	ReactionRemoveExit        = "remove_exit"
	ReactionModifyDescription = "modify_description"
	ReactionAppendDescription = "append_description"
	ReactionModifyTemperature = "modify_temperature"
)

// ItemTemplate is the embedded item created by an add_item reaction.
type ItemTemplate struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// Reaction is one effect of a fired trigger. Type selects which of the
// remaining fields apply.
type Reaction struct {
	Type string `json:"type"`

	// add_item
	Item *ItemTemplate `json:"item,omitempty"`

	// remove_item
	ItemID int64 `json:"item_id,omitempty"`

	// add_exit / remove_exit
	Direction    string `json:"direction,omitempty"`
	TargetAreaID int64  `json:"target_area_id,omitempty"`

	// modify_description / append_description
	NewDescription    *string `json:"new_description,omitempty"`
	AppendDescription *string `json:"append_description,omitempty"`

	// modify_temperature
	Temperature      *float64 `json:"temperature,omitempty"`
	TemperatureDelta *float64 `json:"temperature_delta,omitempty"`
}
