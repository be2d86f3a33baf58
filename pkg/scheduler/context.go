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

package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Solifugus/storysplicer/pkg/world"
)

// systemPromptBase enumerates the accepted action shapes and pins the
// model to a single JSON object.
const systemPromptBase = `You are roleplaying a character in a simulated world. Each turn you receive your current situation and must decide one action.

Respond with exactly one JSON object and nothing else. Accepted actions:
{"action": "move", "direction": "<exit direction>"}
{"action": "speak", "text": "<what you say>"}
{"action": "pickup", "item": "<item name>"}
{"action": "drop", "item": "<item name>"}
{"action": "wait"}
{"action": "sleep"}

Never output prose, explanations, or more than one JSON object.`

// storyPromptSuffix nudges the larger tier toward narrative weight.
const storyPromptSuffix = `
Favor actions that advance your personal story and reveal character.`

// SystemPrompt returns the fixed instruction template for a character
// class.
func SystemPrompt(class string) string {
	if class == world.ClassStory {
		return systemPromptBase + storyPromptSuffix
	}
	return systemPromptBase
}

// PromptInput is everything the context builder reads. It is assembled
// from kernel reads before the LLM call so no transaction spans the
// generation.
type PromptInput struct {
	Character      *world.Character
	Area           *world.Area
	Inventory      []*world.Item
	AreaCharacters []*world.Character
	AreaItems      []*world.Item
}

// BuildContext renders a character's per-cycle prompt: identity,
// physical state, inventory, location, recent memory, and the output
// instruction, in that order.
func BuildContext(in PromptInput) string {
	c := in.Character
	var b strings.Builder

	// Identity
	fmt.Fprintf(&b, "You are %s", c.Name)
	var traits []string
	if c.Age > 0 {
		traits = append(traits, fmt.Sprintf("%d years old", c.Age))
	}
	if c.Gender != "" {
		traits = append(traits, c.Gender)
	}
	if c.Species != "" {
		traits = append(traits, c.Species)
	}
	if len(traits) > 0 {
		fmt.Fprintf(&b, ", %s", strings.Join(traits, ", "))
	}
	b.WriteString(".\n")
	if c.Description != "" {
		fmt.Fprintf(&b, "Appearance: %s\n", c.Description)
	}
	if c.Backstory != "" {
		fmt.Fprintf(&b, "Backstory: %s\n", c.Backstory)
	}
	if len(c.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(c.Interests, ", "))
	}
	if len(c.Likes) > 0 {
		fmt.Fprintf(&b, "Likes: %s\n", strings.Join(c.Likes, ", "))
	}
	if len(c.Dislikes) > 0 {
		fmt.Fprintf(&b, "Dislikes: %s\n", strings.Join(c.Dislikes, ", "))
	}
	if len(c.Beliefs) > 0 {
		fmt.Fprintf(&b, "Beliefs: %s\n", strings.Join(c.Beliefs, ", "))
	}
	if c.InternalConflict != "" {
		fmt.Fprintf(&b, "Internal conflict: %s\n", c.InternalConflict)
	}

	// Physical state
	b.WriteString("\nYour physical state:\n")
	fmt.Fprintf(&b, "- Nutrition: %.0f%%%s\n", c.Nutrition, hungerNote(c.Nutrition))
	fmt.Fprintf(&b, "- Hydration: %.0f%%%s\n", c.Hydration, thirstNote(c.Hydration))
	fmt.Fprintf(&b, "- Tiredness: %.0f%%%s\n", c.Tiredness, tirednessNote(c.Tiredness))
	fmt.Fprintf(&b, "- Alertness: %.0f%%%s\n", c.Alertness, alertnessNote(c.Alertness))
	if len(c.Damage) > 0 {
		var parts []string
		for _, d := range c.Damage {
			parts = append(parts, fmt.Sprintf("%s (%s, %.0f%%)", d.Part, d.Type, d.Severity))
		}
		fmt.Fprintf(&b, "- Injuries: %s\n", strings.Join(parts, ", "))
	}

	// Inventory
	b.WriteString("\nYou are holding:\n")
	fmt.Fprintf(&b, "- Right hand: %s\n", handContents(in.Inventory, world.HandRight))
	fmt.Fprintf(&b, "- Left hand: %s\n", handContents(in.Inventory, world.HandLeft))
	var carried []string
	for _, item := range in.Inventory {
		if item.HeldLocation == nil || *item.HeldLocation == world.HandRight || *item.HeldLocation == world.HandLeft {
			continue
		}
		carried = append(carried, fmt.Sprintf("%s (%s)", item.Name, *item.HeldLocation))
	}
	if len(carried) > 0 {
		fmt.Fprintf(&b, "- Also carrying: %s\n", strings.Join(carried, ", "))
	}

	// Location
	b.WriteString("\n")
	if in.Area == nil {
		b.WriteString("You are not currently in any specific location.\n")
	} else {
		a := in.Area
		fmt.Fprintf(&b, "You are in: %s\n", a.Name)
		if a.Description != "" {
			fmt.Fprintf(&b, "%s\n", a.Description)
		}
		fmt.Fprintf(&b, "Temperature: %.1f C\n", a.Temperature)
		if len(a.Exits) > 0 {
			dirs := make([]string, 0, len(a.Exits))
			for dir := range a.Exits {
				dirs = append(dirs, dir)
			}
			sort.Strings(dirs)
			exits := make([]string, 0, len(dirs))
			for _, dir := range dirs {
				exits = append(exits, fmt.Sprintf("%s (to area %d)", dir, a.Exits[dir]))
			}
			fmt.Fprintf(&b, "Exits: %s\n", strings.Join(exits, ", "))
		} else {
			b.WriteString("Exits: none\n")
		}

		var others []string
		for _, other := range in.AreaCharacters {
			if other.ID == c.ID {
				continue
			}
			others = append(others, other.Name)
		}
		if len(others) > 0 {
			fmt.Fprintf(&b, "Also here: %s\n", strings.Join(others, ", "))
		}

		if len(in.AreaItems) > 0 {
			var names []string
			for _, item := range in.AreaItems {
				names = append(names, item.Name)
			}
			fmt.Fprintf(&b, "Items here: %s\n", strings.Join(names, ", "))
		}
	}

	// Memory
	if len(c.Memory) > 0 {
		b.WriteString("\nRecent memories:\n")
		for _, m := range c.Memory {
			fmt.Fprintf(&b, "- %s -> %s\n", m.Action, m.Result)
		}
	}

	// Instruction footer
	b.WriteString("\nWhat do you do next? Respond with a single JSON action object.")
	return b.String()
}

func hungerNote(v float64) string {
	switch {
	case v < 30:
		return " (very hungry)"
	case v < 60:
		return " (somewhat hungry)"
	default:
		return ""
	}
}

func thirstNote(v float64) string {
	switch {
	case v < 30:
		return " (very thirsty)"
	case v < 60:
		return " (somewhat thirsty)"
	default:
		return ""
	}
}

func tirednessNote(v float64) string {
	switch {
	case v > 80:
		return " (extremely tired)"
	case v > 60:
		return " (tired)"
	default:
		return ""
	}
}

func alertnessNote(v float64) string {
	switch {
	case v < world.AwakeThreshold:
		return " (asleep)"
	case v < 50:
		return " (drowsy)"
	default:
		return ""
	}
}

func handContents(inventory []*world.Item, hand string) string {
	for _, item := range inventory {
		if item.HeldLocation != nil && *item.HeldLocation == hand {
			return item.Name
		}
	}
	return "empty"
}
