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

package llms

import (
	"context"
	"sync"
)

// StubProvider is a deterministic backend for tests and dry runs. It
// returns queued responses in order, falling back to a default once the
// queue drains.
type StubProvider struct {
	mu       sync.Mutex
	queue    []string
	fallback string

	// Calls records every prompt pair seen, newest last.
	Calls []StubCall
}

// StubCall is one recorded generation request.
type StubCall struct {
	System string
	User   string
	Opts   GenerateOptions
}

// NewStubProvider creates a stub returning fallback when no responses
// are queued.
func NewStubProvider(fallback string) *StubProvider {
	return &StubProvider{fallback: fallback}
}

// Enqueue appends responses to be returned by subsequent calls.
func (p *StubProvider) Enqueue(responses ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, responses...)
}

func (p *StubProvider) Generate(_ context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, StubCall{System: systemPrompt, User: userPrompt, Opts: opts})

	if len(p.queue) > 0 {
		next := p.queue[0]
		p.queue = p.queue[1:]
		return next, nil
	}
	return p.fallback, nil
}

func (p *StubProvider) Close() error {
	return nil
}

// Compile-time interface check
var _ TextGenerator = (*StubProvider)(nil)
