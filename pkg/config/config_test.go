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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConfig_SetDefaults(t *testing.T) {
	cfg := &DatabaseConfig{}
	cfg.SetDefaults()

	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, 10, cfg.PoolMax)
	assert.Equal(t, 30000, cfg.IdleTimeoutMS)
	assert.Equal(t, 2000, cfg.ConnectTimeoutMS)
	assert.Equal(t, "disable", cfg.SSLMode)
}

func TestDatabaseConfig_SetDefaults_MySQL(t *testing.T) {
	cfg := &DatabaseConfig{Driver: "mysql"}
	cfg.SetDefaults()
	assert.Equal(t, 3306, cfg.Port)
	assert.Empty(t, cfg.SSLMode)
}

func TestDatabaseConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DatabaseConfig
		wantErr bool
	}{
		{
			name:    "valid postgres",
			cfg:     DatabaseConfig{Driver: "postgres", Host: "localhost", Database: "worlds"},
			wantErr: false,
		},
		{
			name:    "valid sqlite without host",
			cfg:     DatabaseConfig{Driver: "sqlite", Database: ":memory:"},
			wantErr: false,
		},
		{
			name:    "unknown driver",
			cfg:     DatabaseConfig{Driver: "oracle", Host: "localhost", Database: "worlds"},
			wantErr: true,
		},
		{
			name:    "missing database",
			cfg:     DatabaseConfig{Driver: "postgres", Host: "localhost"},
			wantErr: true,
		},
		{
			name:    "postgres without host",
			cfg:     DatabaseConfig{Driver: "postgres", Database: "worlds"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{
		Driver: "postgres", Host: "db", Port: 5432, Database: "worlds",
		Username: "sim", Password: "secret", SSLMode: "disable", ConnectTimeoutMS: 2000,
	}
	assert.Equal(t,
		"host=db port=5432 dbname=worlds user=sim password=secret sslmode=disable connect_timeout=2",
		pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, Database: "worlds", Username: "sim", Password: "secret"}
	assert.Equal(t, "sim:secret@tcp(db:3306)/worlds?parseTime=true", my.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Database: "/tmp/worlds.db"}
	assert.Equal(t, "/tmp/worlds.db", lite.DSN())
}

func TestDatabaseConfig_DriverName(t *testing.T) {
	assert.Equal(t, "sqlite3", (&DatabaseConfig{Driver: "sqlite"}).DriverName())
	assert.Equal(t, "postgres", (&DatabaseConfig{Driver: "postgres"}).DriverName())
}

func TestDatabaseConfig_Dialect(t *testing.T) {
	assert.Equal(t, "sqlite", (&DatabaseConfig{Driver: "sqlite3"}).Dialect())
	assert.Equal(t, "mysql", (&DatabaseConfig{Driver: "mysql"}).Dialect())
}

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", ":memory:")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.MCPPort)
	assert.Equal(t, "stdio", cfg.MCPTransport)
	assert.Equal(t, 5000, cfg.CycleIntervalMS)
	assert.Equal(t, int64(1), cfg.WorldID)
	assert.Equal(t, "ollama", cfg.LLMBackend)
	assert.Equal(t, 10, cfg.Database.PoolMax)
}

func TestFromEnv_InvalidTransport(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", ":memory:")
	t.Setenv("MCP_TRANSPORT", "grpc")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCP_TRANSPORT")
}

func TestDBPool_SQLiteSingleConnection(t *testing.T) {
	cfg := &DatabaseConfig{Driver: "sqlite", Database: ":memory:"}
	cfg.SetDefaults()

	pool := NewDBPool()
	defer pool.Close()

	db, err := pool.Get(cfg)
	require.NoError(t, err)
	require.NotNil(t, db)

	// Same DSN returns the same pool.
	db2, err := pool.Get(cfg)
	require.NoError(t, err)
	assert.Same(t, db, db2)
}
