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

// Package llms routes prompt requests to language model backends. Two
// tiers exist, selected by character class: a smaller model for minor
// characters and a larger one for story characters.
package llms

import "context"

// GenerateOptions bounds one generation.
type GenerateOptions struct {
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// TextGenerator is the prompt interface every backend implements:
// (system, user, options) in, text out. Backends own their model
// lifecycle and are treated as black boxes.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error)
	Close() error
}
