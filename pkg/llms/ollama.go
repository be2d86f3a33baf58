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

package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaProvider generates text against a local Ollama server via the
// /api/chat endpoint.
type OllamaProvider struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

type OllamaRequest struct {
	Model    string          `json:"model"`
	Messages []OllamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *OllamaOptions  `json:"options,omitempty"`
}

type OllamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OllamaOptions struct {
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"` // Max tokens
	Stop        []string `json:"stop,omitempty"`
}

type OllamaResponse struct {
	Model           string        `json:"model"`
	Message         OllamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

// NewOllamaProvider creates a provider for one model on an Ollama server.
func NewOllamaProvider(host, model string) (*OllamaProvider, error) {
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	return &OllamaProvider{
		model:      model,
		baseURL:    strings.TrimSuffix(host, "/"),
		httpClient: &http.Client{},
	}, nil
}

// Generate performs one bounded chat completion. Generation has no
// explicit timeout: the token bound and stop strings limit it.
func (p *OllamaProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error) {
	request := OllamaRequest{
		Model:  p.model,
		Stream: false,
		Messages: []OllamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Options: &OllamaOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			NumPredict:  opts.MaxTokens,
			Stop:        opts.Stop,
		},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var response OllamaResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("ollama API error: %s", response.Error)
	}

	return response.Message.Content, nil
}

// Close releases the provider. The Ollama server owns model memory.
func (p *OllamaProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// Compile-time interface check
var _ TextGenerator = (*OllamaProvider)(nil)
