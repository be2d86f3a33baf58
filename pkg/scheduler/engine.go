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

// Package scheduler drives unowned awake characters on a fixed cadence.
// Each cycle advances physiology across elapsed wall time, builds every
// eligible character's context window, obtains an action from the model
// tier for its class, validates it, and applies it through the kernel.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Solifugus/storysplicer/pkg/kernel"
	"github.com/Solifugus/storysplicer/pkg/llms"
	"github.com/Solifugus/storysplicer/pkg/world"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storysplicer_scheduler_cycles_total",
		Help: "Completed scheduler cycles.",
	})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storysplicer_scheduler_cycle_duration_seconds",
		Help:    "Wall time per scheduler cycle.",
		Buckets: prometheus.DefBuckets,
	})
	charactersProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storysplicer_scheduler_characters_processed_total",
		Help: "Characters processed across all cycles.",
	})
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storysplicer_scheduler_actions_total",
		Help: "Character actions by outcome.",
	}, []string{"outcome"})
)

// generation bounds for action decisions. The closing brace is a stop
// string because the action must be a single small JSON object.
var defaultGenerateOptions = llms.GenerateOptions{
	Temperature: 0.3,
	MaxTokens:   64,
	Stop:        []string{"}", "\n\n"},
}

// Stats is a per-process snapshot of scheduler activity. Not persisted.
type Stats struct {
	Cycles              int64
	CharactersProcessed int64
	ActionsAttempted    int64
	ActionsSucceeded    int64
	ActionsFailed       int64
	AvgCycleDuration    time.Duration
}

// Engine is the per-world cycle scheduler. One background loop drives
// it on a fixed-delay timer; cycles never overlap.
type Engine struct {
	kernel   *kernel.Kernel
	router   *llms.Router
	worldID  int64
	interval time.Duration

	mu            sync.Mutex
	stats         Stats
	totalCycleDur time.Duration
	lastCycle     time.Time

	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time
}

// New creates a scheduler for one world.
func New(k *kernel.Kernel, router *llms.Router, worldID int64, interval time.Duration) *Engine {
	return &Engine{
		kernel:   k,
		router:   router,
		worldID:  worldID,
		interval: interval,
		now:      time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// Start launches the cycle loop. The interval is the minimum spacing
// between cycle starts; a slow cycle delays the next one (best effort,
// no overlap).
func (e *Engine) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.lastCycle = e.now()

	go func() {
		defer close(e.done)
		slog.Info("Scheduler started", "world", e.worldID, "interval", e.interval)
		for {
			start := e.now()
			if err := e.RunCycle(ctx); err != nil {
				slog.Error("Cycle failed", "world", e.worldID, "error", err)
			}

			delay := e.interval - e.now().Sub(start)
			if delay < 0 {
				delay = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}

// Stop lets the current cycle complete, then refuses further scheduling.
// In-flight model calls are not cancelled.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	slog.Info("Scheduler stopped", "world", e.worldID)
}

// Stats returns a snapshot of the per-process counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	if s.Cycles > 0 {
		s.AvgCycleDuration = e.totalCycleDur / time.Duration(s.Cycles)
	}
	return s
}

// RunCycle processes every unowned character once. Physiology ticks
// for all of them, asleep characters included, so sleep recovery
// accrues; only characters awake after the tick take an action.
// Per-character failures are isolated: they are counted and logged,
// and the cycle moves on.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := e.now()

	e.mu.Lock()
	last := e.lastCycle
	if last.IsZero() {
		last = start
	}
	e.lastCycle = start
	e.mu.Unlock()

	dt := start.Sub(last).Seconds()
	if dt < 0 {
		dt = 0
	}

	unowned, err := e.kernel.Store().ListUnowned(ctx, e.worldID)
	if err != nil {
		return fmt.Errorf("failed to list unowned characters: %w", err)
	}

	for _, c := range unowned {
		if err := e.processCharacter(ctx, c, dt); err != nil {
			slog.Warn("Character cycle failed", "character", c.ID, "name", c.Name, "error", err)
			e.countAction(false)
		}
		charactersProcessed.Inc()
		e.mu.Lock()
		e.stats.CharactersProcessed++
		e.mu.Unlock()
	}

	elapsed := e.now().Sub(start)
	cyclesTotal.Inc()
	cycleDuration.Observe(elapsed.Seconds())
	e.mu.Lock()
	e.stats.Cycles++
	e.totalCycleDur += elapsed
	e.mu.Unlock()

	slog.Debug("Cycle complete", "world", e.worldID, "characters", len(unowned), "elapsed", elapsed)
	return nil
}

func (e *Engine) countAction(succeeded bool) {
	e.mu.Lock()
	e.stats.ActionsAttempted++
	if succeeded {
		e.stats.ActionsSucceeded++
	} else {
		e.stats.ActionsFailed++
	}
	e.mu.Unlock()

	actionsTotal.WithLabelValues("attempted").Inc()
	if succeeded {
		actionsTotal.WithLabelValues("succeeded").Inc()
	} else {
		actionsTotal.WithLabelValues("failed").Inc()
	}
}

func (e *Engine) processCharacter(ctx context.Context, c *world.Character, dt float64) error {
	// Physiology advances first; the action observes the ticked state.
	updated, err := e.kernel.UpdateState(ctx, c.ID, physiologyTick(c, dt))
	if err != nil {
		return fmt.Errorf("physiology tick: %w", err)
	}
	if !updated.IsAwake() {
		// Asleep, either still or as of this tick. Recovery accrued
		// above; no action until alertness crosses the threshold.
		slog.Debug("Character asleep", "character", updated.ID, "name", updated.Name)
		return nil
	}

	in, err := e.buildInput(ctx, updated)
	if err != nil {
		return fmt.Errorf("context build: %w", err)
	}
	prompt := BuildContext(in)

	gen, err := e.router.ForClass(updated.Class)
	if err != nil {
		return err
	}

	// No transaction is open here: context was read above, the model
	// call runs free, and the action opens fresh transactions.
	response, err := gen.Generate(ctx, SystemPrompt(updated.Class), prompt, defaultGenerateOptions)
	if err != nil {
		return fmt.Errorf("generation: %w", err)
	}

	action, err := ParseAction(response)
	if err != nil {
		e.countAction(false)
		slog.Debug("Unparseable action", "character", updated.ID, "response", response, "error", err)
		return nil
	}

	if err := e.executeAction(ctx, in, action); err != nil {
		e.countAction(false)
		slog.Debug("Action failed", "character", updated.ID, "action", action.Action, "error", err)
		return nil
	}
	e.countAction(true)
	return nil
}

// buildInput gathers the character's surroundings for the prompt.
func (e *Engine) buildInput(ctx context.Context, c *world.Character) (PromptInput, error) {
	s := e.kernel.Store()
	in := PromptInput{Character: c}

	inventory, err := s.ItemsHeldBy(ctx, c.ID)
	if err != nil {
		return in, err
	}
	in.Inventory = inventory

	if c.CurrentAreaID == nil {
		return in, nil
	}

	area, err := s.GetArea(ctx, *c.CurrentAreaID)
	if err != nil {
		return in, err
	}
	in.Area = area

	in.AreaCharacters, err = s.CharactersInArea(ctx, area.ID)
	if err != nil {
		return in, err
	}
	in.AreaItems, err = s.ItemsInArea(ctx, area.ID)
	if err != nil {
		return in, err
	}
	return in, nil
}

// executeAction validates and applies one decoded action. Unlike the
// character_move tool, the move action is gated by the area's exits.
func (e *Engine) executeAction(ctx context.Context, in PromptInput, a *Action) error {
	c := in.Character

	switch a.Action {
	case ActionMove:
		if in.Area == nil {
			return world.Errorf(world.CodeNoArea, "character %d has no area to move from", c.ID)
		}
		dir := world.NormalizeDirection(a.Direction)
		target, ok := in.Area.Exits[dir]
		if !ok {
			return world.Validationf("no exit %q from area %d", dir, in.Area.ID)
		}
		return e.kernel.MoveCharacter(ctx, c.ID, target)

	case ActionSpeak:
		if strings.TrimSpace(a.Text) == "" {
			return world.Validationf("speak action without text")
		}
		return e.kernel.Speak(ctx, c.ID, a.Text, kernel.KindSpeech)

	case ActionPickup:
		item := findItemByName(in.AreaItems, a.Item)
		if item == nil {
			return world.NotFoundf("no item matching %q in area", a.Item)
		}
		hand, err := freeHand(in.Inventory)
		if err != nil {
			return err
		}
		return e.kernel.Pickup(ctx, c.ID, item.ID, hand)

	case ActionDrop:
		item := findItemByName(in.Inventory, a.Item)
		if item == nil {
			return world.NotFoundf("not holding an item matching %q", a.Item)
		}
		return e.kernel.Drop(ctx, c.ID, item.ID)

	case ActionWait:
		return e.kernel.AppendMemory(ctx, c.ID, world.MemoryEntry{
			Action: "waited",
			Result: "time passed",
		})

	case ActionSleep:
		alertness := 0.0
		_, err := e.kernel.UpdateState(ctx, c.ID, kernel.StatePatch{Alertness: &alertness})
		return err

	default:
		return fmt.Errorf("unknown action %q", a.Action)
	}
}

// findItemByName matches case-insensitively on a name substring.
func findItemByName(items []*world.Item, name string) *world.Item {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), needle) {
			return item
		}
	}
	return nil
}

// freeHand prefers the right hand, falls back to the left, and fails
// when both are full.
func freeHand(inventory []*world.Item) (string, error) {
	occupied := map[string]bool{}
	for _, item := range inventory {
		if item.HeldLocation != nil {
			occupied[*item.HeldLocation] = true
		}
	}
	if !occupied[world.HandRight] {
		return world.HandRight, nil
	}
	if !occupied[world.HandLeft] {
		return world.HandLeft, nil
	}
	return "", world.Errorf(world.CodeBothHandsFull, "both hands are full")
}
