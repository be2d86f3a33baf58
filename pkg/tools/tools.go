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

// Package tools exposes every world operation as a named, introspectable
// tool. The registry is transport-agnostic; the wcp package projects it
// onto MCP.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

type ToolParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

type ToolResult struct {
	Success       bool          `json:"success"`
	Content       string        `json:"content,omitempty"`
	Output        any           `json:"output,omitempty"`
	ToolName      string        `json:"tool_name"`
	ExecutionTime time.Duration `json:"execution_time,omitempty"`
}

type Tool interface {
	GetInfo() ToolInfo

	Execute(ctx context.Context, args map[string]any) (ToolResult, error)

	GetName() string

	GetDescription() string
}

// HandlerFunc is one tool's implementation. The returned value is
// JSON-marshaled into the result content.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// worldTool wraps a handler with its metadata. Every registered tool is
// one of these.
type worldTool struct {
	info    ToolInfo
	handler HandlerFunc
}

func (t *worldTool) GetInfo() ToolInfo      { return t.info }
func (t *worldTool) GetName() string        { return t.info.Name }
func (t *worldTool) GetDescription() string { return t.info.Description }

func (t *worldTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()
	out, err := t.handler(ctx, args)
	if err != nil {
		return ToolResult{ToolName: t.info.Name, ExecutionTime: time.Since(start)}, err
	}

	content, err := json.Marshal(out)
	if err != nil {
		return ToolResult{ToolName: t.info.Name}, fmt.Errorf("failed to encode %s result: %w", t.info.Name, err)
	}
	return ToolResult{
		Success:       true,
		Content:       string(content),
		Output:        out,
		ToolName:      t.info.Name,
		ExecutionTime: time.Since(start),
	}, nil
}

// Registry holds the named tools of one server instance.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) error {
	name := t.GetName()
	if name == "" {
		return fmt.Errorf("tool has no name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns tool metadata sorted by name.
func (r *Registry) List() []ToolInfo {
	infos := make([]ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, t.GetInfo())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
