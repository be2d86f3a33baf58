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
	"fmt"
	"log/slog"
	"sync"

	"github.com/Solifugus/storysplicer/pkg/world"
)

// Router selects a model tier per character class and lazy-loads each
// tier on first use. Tier handles are process-wide; the scheduler's
// sequential cycle keeps generation single-flight per tier.
type Router struct {
	mu    sync.Mutex
	tiers map[string]*tier
}

type tier struct {
	once    sync.Once
	factory func() (TextGenerator, error)
	gen     TextGenerator
	err     error
}

// NewRouter creates a router with no tiers registered.
func NewRouter() *Router {
	return &Router{tiers: make(map[string]*tier)}
}

// Register binds a character class to a backend factory. The factory
// runs once, on the first generation for that class.
func (r *Router) Register(class string, factory func() (TextGenerator, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tiers[class] = &tier{factory: factory}
}

// ForClass returns the generator for a character class, loading it if
// needed. Unknown classes fall back to the minor tier.
func (r *Router) ForClass(class string) (TextGenerator, error) {
	r.mu.Lock()
	t, ok := r.tiers[class]
	if !ok {
		t, ok = r.tiers[world.ClassMinor]
	}
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no model tier registered for class %q", class)
	}

	t.once.Do(func() {
		slog.Info("Loading model tier", "class", class)
		t.gen, t.err = t.factory()
	})
	if t.err != nil {
		return nil, fmt.Errorf("failed to load tier for class %q: %w", class, t.err)
	}
	return t.gen, nil
}

// Close disposes every loaded tier.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for class, t := range r.tiers {
		if t.gen == nil {
			continue
		}
		if err := t.gen.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close tier %q: %w", class, err)
		}
		t.gen = nil
	}
	return firstErr
}
