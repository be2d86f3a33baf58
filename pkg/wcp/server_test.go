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

package wcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Solifugus/storysplicer/pkg/kernel"
	"github.com/Solifugus/storysplicer/pkg/session"
	"github.com/Solifugus/storysplicer/pkg/store"
	"github.com/Solifugus/storysplicer/pkg/tools"
	"github.com/Solifugus/storysplicer/pkg/world"
)

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type callResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

type fixture struct {
	server *Server
	store  *store.Store

	worldID int64
	areaID  int64
	charID  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec("PRAGMA foreign_keys=ON")
	require.NoError(t, err)

	s, err := store.New(db, "sqlite")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))

	k := kernel.New(s)
	registry := tools.NewRegistry()
	require.NoError(t, tools.NewService(k, session.NewManager(s)).Register(registry))

	f := &fixture{store: s, server: NewServer("storysplicer-test", "0.0.0", registry, s)}

	f.worldID, err = s.CreateWorld(ctx, "Aldera", "")
	require.NoError(t, err)
	f.areaID, err = s.CreateArea(ctx, &world.Area{WorldID: f.worldID, Name: "Meadow"})
	require.NoError(t, err)
	f.charID, err = s.CreateCharacter(ctx, &world.Character{
		WorldID: f.worldID, Name: "Mira", Class: world.ClassMinor,
		Alertness: 100, Nutrition: 100, Hydration: 100,
		CurrentAreaID: &f.areaID,
	})
	require.NoError(t, err)
	return f
}

// handle pushes one raw JSON-RPC message through the MCP server.
func (f *fixture) handle(t *testing.T, ctx context.Context, raw string) *rpcResponse {
	t.Helper()
	msg := f.server.mcp.HandleMessage(ctx, json.RawMessage(raw))
	if msg == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	var resp rpcResponse
	require.NoError(t, json.Unmarshal(payload, &resp))
	return &resp
}

const initializeMsg = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`

func TestHandleMessage_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.handle(t, ctx, initializeMsg)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	resp = f.handle(t, ctx, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	var listed struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &listed))
	names := make([]string, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "world_list")
	assert.Contains(t, names, "character_move")
	assert.Len(t, names, 22)

	resp = f.handle(t, ctx, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"world_list","arguments":{}}}`)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	var call callResult
	require.NoError(t, json.Unmarshal(resp.Result, &call))
	assert.False(t, call.IsError)
	require.NotEmpty(t, call.Content)
	assert.Contains(t, call.Content[0].Text, "Aldera")
}

func TestHandleMessage_ProtocolErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.handle(t, ctx, initializeMsg)

	resp := f.handle(t, ctx, `{"jsonrpc":"2.0","id":4,"method":"no/such/method"}`)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.METHOD_NOT_FOUND, resp.Error.Code)

	resp = f.handle(t, ctx, `{"jsonrpc":"2.0","id":5,`)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.PARSE_ERROR, resp.Error.Code)
}

func TestHandleMessage_DomainErrorCarriesCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.handle(t, ctx, initializeMsg)

	resp := f.handle(t, ctx, `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"world_get","arguments":{"world_id":9999}}}`)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	var call callResult
	require.NoError(t, json.Unmarshal(resp.Result, &call))
	assert.True(t, call.IsError)
	require.NotEmpty(t, call.Content)
	assert.Contains(t, call.Content[0].Text, "[1001]")
}

func TestBuildTool_Schema(t *testing.T) {
	tool := buildTool(tools.ToolInfo{
		Name:        "demo",
		Description: "a demo",
		Parameters: []tools.ToolParameter{
			{Name: "world_id", Type: "number", Description: "id", Required: true},
			{Name: "kind", Type: "string", Enum: []string{"a", "b"}},
		},
	})

	assert.Equal(t, "demo", tool.Name)
	assert.Equal(t, "a demo", tool.Description)
	require.Contains(t, tool.InputSchema.Properties, "world_id")
	require.Contains(t, tool.InputSchema.Properties, "kind")
	assert.Equal(t, []string{"world_id"}, tool.InputSchema.Required)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketTransport(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	roundTrip := func(raw string) *rpcResponse {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		var resp rpcResponse
		require.NoError(t, json.Unmarshal(payload, &resp))
		return &resp
	}

	resp := roundTrip(initializeMsg)
	require.Nil(t, resp.Error)

	// A success result omits isError, so decode into a fresh struct
	// each time rather than reusing one across round trips.
	decodeCall := func(resp *rpcResponse) callResult {
		var call callResult
		require.NoError(t, json.Unmarshal(resp.Result, &call))
		return call
	}

	resp = roundTrip(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"world_list","arguments":{}}}`)
	require.Nil(t, resp.Error)
	call := decodeCall(resp)
	assert.False(t, call.IsError)

	// Character mutations over the websocket need a session token.
	resp = roundTrip(fmt.Sprintf(
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"character_move","arguments":{"character_id":%d,"area_id":%d}}}`,
		f.charID, f.areaID))
	require.Nil(t, resp.Error)
	call = decodeCall(resp)
	assert.True(t, call.IsError)
	assert.Contains(t, call.Content[0].Text, "[1000]")

	// Claiming through the same transport unlocks the move.
	resp = roundTrip(fmt.Sprintf(
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"session_claim","arguments":{"player_id":"p1","character_id":%d}}}`,
		f.charID))
	require.Nil(t, resp.Error)
	call = decodeCall(resp)
	require.False(t, call.IsError)
	var claimed struct {
		SessionToken string `json:"session_token"`
	}
	require.NoError(t, json.Unmarshal([]byte(call.Content[0].Text), &claimed))
	require.NotEmpty(t, claimed.SessionToken)

	resp = roundTrip(fmt.Sprintf(
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"character_move","arguments":{"character_id":%d,"area_id":%d,"session_token":%q}}}`,
		f.charID, f.areaID, claimed.SessionToken))
	require.Nil(t, resp.Error)
	call = decodeCall(resp)
	assert.False(t, call.IsError)
}
