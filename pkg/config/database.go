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

import "fmt"

// DatabaseConfig holds configuration for the world database connection.
// Supports PostgreSQL, MySQL, and SQLite.
type DatabaseConfig struct {
	// Driver specifies the database driver: "postgres", "mysql", or "sqlite".
	Driver string

	// Host is the database server hostname (not used for SQLite).
	Host string

	// Port is the database server port (not used for SQLite).
	Port int

	// Database is the database name (or file path for SQLite).
	Database string

	// Username for database authentication (not used for SQLite).
	Username string

	// Password for database authentication (not used for SQLite).
	Password string

	// SSLMode for PostgreSQL connections.
	SSLMode string

	// PoolMax is the maximum number of open connections.
	PoolMax int

	// IdleTimeoutMS is the idle connection timeout in milliseconds.
	IdleTimeoutMS int

	// ConnectTimeoutMS is the connection establishment timeout in milliseconds.
	ConnectTimeoutMS int

	// LogQueries enables SQL statement logging at debug level.
	LogQueries bool
}

// SetDefaults applies default values to the database config.
func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "postgres"
	}
	if c.PoolMax == 0 {
		c.PoolMax = 10
	}
	if c.IdleTimeoutMS == 0 {
		c.IdleTimeoutMS = 30000
	}
	if c.ConnectTimeoutMS == 0 {
		c.ConnectTimeoutMS = 2000
	}
	if c.Port == 0 {
		switch c.Driver {
		case "postgres":
			c.Port = 5432
		case "mysql":
			c.Port = 3306
		}
	}
	if c.Driver == "postgres" && c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	validDrivers := map[string]bool{
		"postgres": true,
		"mysql":    true,
		"sqlite":   true,
		"sqlite3":  true,
	}
	if !validDrivers[c.Driver] {
		return fmt.Errorf("invalid driver %q (valid: postgres, mysql, sqlite)", c.Driver)
	}

	if c.Database == "" {
		return fmt.Errorf("database is required")
	}

	if c.Driver != "sqlite" && c.Driver != "sqlite3" && c.Host == "" {
		return fmt.Errorf("host is required for %s", c.Driver)
	}

	if c.PoolMax < 0 {
		return fmt.Errorf("pool max must be non-negative")
	}

	return nil
}

// DSN returns the data source name (connection string) for the database.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s", c.Host, c.Port, c.Database)
		if c.Username != "" {
			dsn += fmt.Sprintf(" user=%s", c.Username)
		}
		if c.Password != "" {
			dsn += fmt.Sprintf(" password=%s", c.Password)
		}
		if c.SSLMode != "" {
			dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
		}
		if c.ConnectTimeoutMS > 0 {
			dsn += fmt.Sprintf(" connect_timeout=%d", (c.ConnectTimeoutMS+999)/1000)
		}
		return dsn
	case "mysql":
		if c.Username != "" {
			return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
				c.Username, c.Password, c.Host, c.Port, c.Database)
		}
		return fmt.Sprintf("tcp(%s:%d)/%s?parseTime=true", c.Host, c.Port, c.Database)
	case "sqlite", "sqlite3":
		return c.Database // For SQLite, database is the file path
	default:
		return ""
	}
}

// DriverName returns the normalized driver name for sql.Open().
// Converts "sqlite" to "sqlite3" for the go-sqlite3 driver.
func (c *DatabaseConfig) DriverName() string {
	if c.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.Driver
}

// Dialect returns the normalized SQL dialect name for query building.
// Converts "sqlite3" to "sqlite" for consistent dialect handling.
func (c *DatabaseConfig) Dialect() string {
	if c.Driver == "sqlite3" {
		return "sqlite"
	}
	return c.Driver
}
