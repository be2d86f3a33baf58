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

// Command storysplicer runs the multi-agent world simulator.
//
// Usage:
//
//	storysplicer serve
//	storysplicer migrate
//	storysplicer migrate --down
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/Solifugus/storysplicer/pkg/config"
	"github.com/Solifugus/storysplicer/pkg/logger"
	"github.com/Solifugus/storysplicer/pkg/store"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Run the scheduler and the WCP server."`
	Migrate MigrateCmd `cmd:"" help:"Apply schema migrations."`

	LogLevel string `help:"Log level (debug, info, warn, error). Overrides LOG_LEVEL."`
	LogFile  string `help:"Log file path (empty = stderr)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("storysplicer version %s\n", version)
	return nil
}

// setup loads configuration, initializes logging, and opens the store.
// The returned cleanup closes the pool and any log file.
func setup(cli *CLI) (*config.Config, *store.Store, func(), error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, nil, err
	}

	levelStr := cfg.LogLevel
	if cli.LogLevel != "" {
		levelStr = cli.LogLevel
	}
	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, nil, nil, err
	}

	output := os.Stderr
	logCleanup := func() {}
	if cli.LogFile != "" {
		file, closeFile, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			return nil, nil, nil, err
		}
		output = file
		logCleanup = closeFile
	}
	logger.Init(level, output, "simple")

	pool := config.NewDBPool()
	db, err := pool.Get(&cfg.Database)
	if err != nil {
		logCleanup()
		return nil, nil, nil, fmt.Errorf("database unreachable: %w", err)
	}

	s, err := store.New(db, cfg.Database.Dialect())
	if err != nil {
		pool.Close()
		logCleanup()
		return nil, nil, nil, err
	}
	s.SetLogQueries(cfg.Database.LogQueries)

	cleanup := func() {
		pool.Close()
		logCleanup()
	}
	return cfg, s, cleanup, nil
}

func main() {
	config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("storysplicer"),
		kong.Description("Multi-agent world simulator with an MCP control surface."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
