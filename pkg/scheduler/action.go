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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Action is the decoded decision of one generation.
type Action struct {
	Action    string `json:"action"`
	Direction string `json:"direction,omitempty"`
	Text      string `json:"text,omitempty"`
	Item      string `json:"item,omitempty"`
}

// Action verbs accepted from the model.
const (
	ActionMove   = "move"
	ActionSpeak  = "speak"
	ActionPickup = "pickup"
	ActionDrop   = "drop"
	ActionWait   = "wait"
	ActionSleep  = "sleep"
)

// ParseAction extracts the first JSON object from a model response.
// Generation stops on the closing brace, so a truncated trailing brace
// is expected and repaired.
func ParseAction(response string) (*Action, error) {
	start := strings.Index(response, "{")
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in response")
	}

	candidate := response[start:]
	if end := strings.LastIndex(candidate, "}"); end >= 0 {
		candidate = candidate[:end+1]
	}

	var a Action
	if err := json.Unmarshal([]byte(candidate), &a); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return nil, fmt.Errorf("unparseable action: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &a); err != nil {
			return nil, fmt.Errorf("unparseable action after repair: %w", err)
		}
	}

	if a.Action == "" {
		return nil, fmt.Errorf("response has no action field")
	}
	a.Action = strings.ToLower(strings.TrimSpace(a.Action))
	return &a, nil
}
