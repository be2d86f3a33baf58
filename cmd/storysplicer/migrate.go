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
	"log/slog"
)

// MigrateCmd applies pending migrations, or rolls back the most recent
// one with --down.
type MigrateCmd struct {
	Down bool `help:"Roll back the most recent migration instead of applying."`
}

func (c *MigrateCmd) Run(cli *CLI) error {
	_, s, cleanup, err := setup(cli)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if c.Down {
		if err := s.Rollback(ctx); err != nil {
			return err
		}
		slog.Info("Rolled back most recent migration")
		return nil
	}

	if err := s.Migrate(ctx); err != nil {
		return err
	}
	slog.Info("Migrations applied")
	return nil
}
