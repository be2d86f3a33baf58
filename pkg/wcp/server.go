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

// Package wcp projects the tool catalogue onto the Model Context
// Protocol. Two transports carry the same JSON-RPC envelopes: stdio for
// local automation and a websocket endpoint for remote clients.
package wcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Solifugus/storysplicer/pkg/store"
	"github.com/Solifugus/storysplicer/pkg/tools"
	"github.com/Solifugus/storysplicer/pkg/world"
)

// requestTimeout bounds every tool call.
const requestTimeout = 30 * time.Second

// Server hosts the tool catalogue behind an MCP server instance.
type Server struct {
	mcp   *server.MCPServer
	store *store.Store
}

// NewServer builds an MCP server exposing every registered tool.
func NewServer(name, version string, registry *tools.Registry, s *store.Store) *Server {
	srv := &Server{
		mcp: server.NewMCPServer(name, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		store: s,
	}

	for _, info := range registry.List() {
		t, _ := registry.Get(info.Name)
		srv.mcp.AddTool(buildTool(info), srv.toolHandler(t))
	}
	return srv
}

// ServeStdio blocks serving the line-delimited stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// buildTool translates catalogue metadata into an MCP tool schema.
func buildTool(info tools.ToolInfo) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(info.Description)}
	for _, p := range info.Parameters {
		var props []mcp.PropertyOption
		if p.Description != "" {
			props = append(props, mcp.Description(p.Description))
		}
		if p.Required {
			props = append(props, mcp.Required())
		}
		if len(p.Enum) > 0 {
			props = append(props, mcp.Enum(p.Enum...))
		}

		switch p.Type {
		case "number":
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		case "boolean":
			opts = append(opts, mcp.WithBoolean(p.Name, props...))
		case "object":
			opts = append(opts, mcp.WithObject(p.Name, props...))
		case "array":
			opts = append(opts, mcp.WithArray(p.Name, props...))
		default:
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(info.Name, opts...)
}

// toolHandler wraps one tool with the request timeout and the error
// model: failures come back as isError results carrying the stable
// numeric code, never as transport errors.
func (s *Server) toolHandler(t tools.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestID := uuid.NewString()
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		start := time.Now()
		res, err := t.Execute(ctx, request.GetArguments())
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = world.Errorf(world.CodeTimeout, "%s exceeded %s", t.GetName(), requestTimeout)
			}
			slog.Warn("Tool call failed",
				"request", requestID, "tool", t.GetName(),
				"code", world.RPCCode(err), "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("[%d] %s", world.RPCCode(err), err.Error())), nil
		}

		slog.Debug("Tool call",
			"request", requestID, "tool", t.GetName(), "elapsed", time.Since(start))
		return mcp.NewToolResultText(res.Content), nil
	}
}
