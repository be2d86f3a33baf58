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

package tools

import (
	"context"
	"encoding/json"

	"github.com/Solifugus/storysplicer/pkg/world"
)

type contextKey string

const remoteKey contextKey = "remote"

// WithRemote marks a request as arriving over a network transport.
// Remote callers must present a session token for character mutations.
func WithRemote(ctx context.Context) context.Context {
	return context.WithValue(ctx, remoteKey, true)
}

// IsRemote reports whether the request carries the remote marker.
func IsRemote(ctx context.Context) bool {
	v, _ := ctx.Value(remoteKey).(bool)
	return v
}

// stringArg reads a required string parameter.
func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return "", world.Validationf("%s parameter is required", name)
	}
	return v, nil
}

func optStringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}

// int64Arg reads a required integer parameter. JSON decoding yields
// float64, so both forms are accepted.
func int64Arg(args map[string]any, name string) (int64, error) {
	switch v := args[name].(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	default:
		return 0, world.Validationf("%s parameter is required and must be a number", name)
	}
}

func optInt64Arg(args map[string]any, name string) (*int64, error) {
	if _, present := args[name]; !present || args[name] == nil {
		return nil, nil
	}
	v, err := int64Arg(args, name)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optFloatArg(args map[string]any, name string) (*float64, error) {
	if _, present := args[name]; !present || args[name] == nil {
		return nil, nil
	}
	switch v := args[name].(type) {
	case float64:
		return &v, nil
	case int:
		f := float64(v)
		return &f, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, world.Validationf("%s must be a number", name)
		}
		return &f, nil
	default:
		return nil, world.Validationf("%s must be a number", name)
	}
}

func floatArgOr(args map[string]any, name string, fallback float64) (float64, error) {
	p, err := optFloatArg(args, name)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return fallback, nil
	}
	return *p, nil
}

// decodeArg re-marshals a loosely typed argument into a concrete type,
// for structured parameters such as damage lists.
func decodeArg(args map[string]any, name string, dst any) (bool, error) {
	v, present := args[name]
	if !present || v == nil {
		return false, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false, world.Validationf("%s has an invalid shape", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, world.Validationf("%s has an invalid shape: %v", name, err)
	}
	return true, nil
}
