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

// Package config loads runtime configuration from environment variables and
// optional .env files, and manages shared database connection pools.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the top-level runtime configuration for the simulator process.
type Config struct {
	Database DatabaseConfig

	// MCPPort is the TCP port for the websocket transport.
	MCPPort int

	// MCPTransport selects the protocol transport: "stdio" or "websocket".
	MCPTransport string

	// CycleIntervalMS is the minimum spacing between scheduler cycle starts.
	CycleIntervalMS int

	// WorldID is the world this process simulates.
	WorldID int64

	// LLMBackend selects the text generation backend: "ollama" or "stub".
	LLMBackend string

	// OllamaHost is the base URL of the Ollama server.
	OllamaHost string

	// StoryModel is the model name used for story-class characters.
	StoryModel string

	// MinorModel is the model name used for minor-class characters.
	MinorModel string

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string
}

// LoadEnvFiles loads environment files in precedence order.
// Files loaded earlier take precedence (godotenv does not override).
func LoadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err != nil {
				slog.Warn("Failed to load env file", "file", file, "error", err)
			} else {
				slog.Debug("Loaded env file", "file", file)
			}
		}
	}
}

// FromEnv builds a Config from environment variables, applying defaults
// and validating the result.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			Host:             getEnv("DB_HOST", "localhost"),
			Port:             getEnvInt("DB_PORT", 0),
			Database:         getEnv("DB_NAME", "storysplicer"),
			Username:         getEnv("DB_USER", ""),
			Password:         getEnv("DB_PASSWORD", ""),
			PoolMax:          getEnvInt("DB_POOL_MAX", 10),
			IdleTimeoutMS:    getEnvInt("DB_IDLE_TIMEOUT", 30000),
			ConnectTimeoutMS: getEnvInt("DB_CONNECT_TIMEOUT", 2000),
			LogQueries:       getEnvBool("LOG_QUERIES", false),
		},
		MCPPort:         getEnvInt("MCP_PORT", 3000),
		MCPTransport:    getEnv("MCP_TRANSPORT", "stdio"),
		CycleIntervalMS: getEnvInt("CYCLE_INTERVAL", 5000),
		WorldID:         int64(getEnvInt("WORLD_ID", 1)),
		LLMBackend:      getEnv("LLM_BACKEND", "ollama"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		StoryModel:      getEnv("STORY_MODEL", "llama3.1:8b"),
		MinorModel:      getEnv("MINOR_MODEL", "llama3.2:1b"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	cfg.Database.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the full configuration.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	switch c.MCPTransport {
	case "stdio", "websocket":
	default:
		return fmt.Errorf("invalid MCP_TRANSPORT %q (valid: stdio, websocket)", c.MCPTransport)
	}
	if c.MCPPort <= 0 || c.MCPPort > 65535 {
		return fmt.Errorf("invalid MCP_PORT %d", c.MCPPort)
	}
	if c.CycleIntervalMS <= 0 {
		return fmt.Errorf("CYCLE_INTERVAL must be positive")
	}
	if c.WorldID <= 0 {
		return fmt.Errorf("WORLD_ID must be positive")
	}
	switch c.LLMBackend {
	case "ollama", "stub":
	default:
		return fmt.Errorf("invalid LLM_BACKEND %q (valid: ollama, stub)", c.LLMBackend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer env value, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}
