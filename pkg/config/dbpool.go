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

package config

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DBPool manages shared database connections keyed by DSN.
// For SQLite, it ensures only one connection is used to prevent
// "database is locked" errors.
type DBPool struct {
	mu    sync.Mutex
	pools map[string]*sql.DB
}

// NewDBPool creates a new database pool manager.
func NewDBPool() *DBPool {
	return &DBPool{
		pools: make(map[string]*sql.DB),
	}
}

// Get returns a database connection for the given config.
// For the same DSN, it returns the same connection pool.
func (p *DBPool) Get(cfg *DatabaseConfig) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dsn := cfg.DSN()
	if db, ok := p.pools[dsn]; ok {
		return db, nil
	}

	db, err := p.createPool(cfg)
	if err != nil {
		return nil, err
	}

	p.pools[dsn] = db
	return db, nil
}

func (p *DBPool) createPool(cfg *DatabaseConfig) (*sql.DB, error) {
	driverName := cfg.DriverName()

	db, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time. Using a single connection
	// serializes all database access and prevents "database is locked" errors.
	if driverName == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		slog.Debug("SQLite: using single connection mode")
	} else {
		if cfg.PoolMax > 0 {
			db.SetMaxOpenConns(cfg.PoolMax)
		}
		db.SetMaxIdleConns(cfg.PoolMax / 2)
	}
	if cfg.IdleTimeoutMS > 0 {
		db.SetConnMaxIdleTime(time.Duration(cfg.IdleTimeoutMS) * time.Millisecond)
	}
	db.SetConnMaxLifetime(time.Hour)

	timeout := time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driverName == "sqlite3" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			slog.Warn("Failed to enable WAL mode", "error", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=10000"); err != nil {
			slog.Warn("Failed to set busy timeout", "error", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			slog.Warn("Failed to enable foreign keys", "error", err)
		}
	}

	return db, nil
}

// Close closes all database connections.
func (p *DBPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for dsn, db := range p.pools {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", dsn, err))
		}
	}
	p.pools = make(map[string]*sql.DB)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing pools: %v", errs)
	}
	return nil
}
