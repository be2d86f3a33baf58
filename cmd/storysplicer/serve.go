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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Solifugus/storysplicer/pkg/config"
	"github.com/Solifugus/storysplicer/pkg/kernel"
	"github.com/Solifugus/storysplicer/pkg/llms"
	"github.com/Solifugus/storysplicer/pkg/scheduler"
	"github.com/Solifugus/storysplicer/pkg/session"
	"github.com/Solifugus/storysplicer/pkg/tools"
	"github.com/Solifugus/storysplicer/pkg/trigger"
	"github.com/Solifugus/storysplicer/pkg/wcp"
	"github.com/Solifugus/storysplicer/pkg/world"
)

// ServeCmd runs migrations, the cycle scheduler, the session sweeper,
// and the selected WCP transport until interrupted.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, s, cleanup, err := setup(cli)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	if _, err := s.GetWorld(ctx, cfg.WorldID); err != nil {
		slog.Warn("Configured world does not exist yet; create it with the world_create tool",
			"world", cfg.WorldID, "error", err)
	}

	k := kernel.New(s)
	k.SetSink(trigger.New(s))

	sessions := session.NewManager(s)
	sessions.StartSweeper(ctx)

	router := buildRouter(cfg)
	defer router.Close()

	sched := scheduler.New(k, router, cfg.WorldID,
		time.Duration(cfg.CycleIntervalMS)*time.Millisecond)
	sched.Start()
	defer func() {
		sched.Stop()
		stats := sched.Stats()
		slog.Info("Scheduler statistics",
			"cycles", stats.Cycles,
			"characters", stats.CharactersProcessed,
			"actions_attempted", stats.ActionsAttempted,
			"actions_succeeded", stats.ActionsSucceeded,
			"actions_failed", stats.ActionsFailed,
			"avg_cycle", stats.AvgCycleDuration)
	}()

	registry := tools.NewRegistry()
	if err := tools.NewService(k, sessions).Register(registry); err != nil {
		return err
	}
	server := wcp.NewServer("storysplicer", "1.0.0", registry, s)

	slog.Info("Serving",
		"world", cfg.WorldID, "transport", cfg.MCPTransport,
		"backend", cfg.LLMBackend, "interval_ms", cfg.CycleIntervalMS)

	switch cfg.MCPTransport {
	case "websocket":
		return server.ListenAndServe(ctx, cfg.MCPPort)
	default:
		errCh := make(chan error, 1)
		go func() { errCh <- server.ServeStdio() }()
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		}
	}
}

// buildRouter wires one model tier per character class.
func buildRouter(cfg *config.Config) *llms.Router {
	router := llms.NewRouter()

	if cfg.LLMBackend == "stub" {
		router.Register(world.ClassStory, func() (llms.TextGenerator, error) {
			return llms.NewStubProvider(`{"action":"wait"}`), nil
		})
		router.Register(world.ClassMinor, func() (llms.TextGenerator, error) {
			return llms.NewStubProvider(`{"action":"wait"}`), nil
		})
		return router
	}

	router.Register(world.ClassStory, func() (llms.TextGenerator, error) {
		return llms.NewOllamaProvider(cfg.OllamaHost, cfg.StoryModel)
	})
	router.Register(world.ClassMinor, func() (llms.TextGenerator, error) {
		return llms.NewOllamaProvider(cfg.OllamaHost, cfg.MinorModel)
	})
	return router
}
