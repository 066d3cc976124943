// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	anthropicVersion        = "2023-06-01"
)

// AnthropicProvider implements Provider against the Anthropic messages API
// (or any compatible proxy) over plain HTTP.
type AnthropicProvider struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

// AnthropicOption configures the provider.
type AnthropicOption func(*AnthropicProvider)

// WithBaseURL sets a custom API base URL, e.g. a third-party proxy.
func WithBaseURL(url string) AnthropicOption {
	return func(p *AnthropicProvider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithModel sets the default model.
func WithModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithMaxTokens sets the response token cap.
func WithMaxTokens(n int) AnthropicOption {
	return func(p *AnthropicProvider) { p.maxTokens = n }
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) { p.client = client }
}

// NewAnthropic creates a new Anthropic provider.
func NewAnthropic(apiKey string, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		baseURL:   defaultAnthropicBaseURL,
		apiKey:    apiKey,
		model:     defaultAnthropicModel,
		maxTokens: 4096,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	FileID    string          `json:"file_id,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicTool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema interface{} `json:"input_schema"`
}

type anthropicContainer struct {
	Skills []anthropicContainerSkill `json:"skills"`
}

type anthropicContainerSkill struct {
	Type    string `json:"type"`
	SkillID string `json:"skill_id"`
}

type anthropicRequest struct {
	Model     string              `json:"model"`
	MaxTokens int                 `json:"max_tokens"`
	System    string              `json:"system,omitempty"`
	Messages  []anthropicMessage  `json:"messages"`
	Tools     []anthropicTool     `json:"tools,omitempty"`
	Container *anthropicContainer `json:"container,omitempty"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Chat implements Provider.
func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	aReq := anthropicRequest{
		Model:     model,
		MaxTokens: p.maxTokens,
	}
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			aReq.System = msg.Content
			continue
		}
		aReq.Messages = append(aReq.Messages, convertMessage(msg))
	}
	for _, tool := range req.Tools {
		aReq.Tools = append(aReq.Tools, anthropicTool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: tool.Function.Parameters,
		})
	}

	aResp, err := p.post(ctx, aReq)
	if err != nil {
		return nil, err
	}
	return convertResponse(aResp), nil
}

// InvokeSkill executes a vendor-hosted skill by id, passing the invocation
// arguments as the user turn. Returns the response text and the id of any
// produced file. The executor dispatch layer treats this as the vendor
// backend for manifests with an anthropic runtime.
func (p *AnthropicProvider) InvokeSkill(ctx context.Context, skillID string, args map[string]any) (string, string, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return "", "", fmt.Errorf("marshal skill arguments: %w", err)
	}

	aReq := anthropicRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicContentBlock{{Type: "text", Text: string(payload)}},
		}},
		Container: &anthropicContainer{
			Skills: []anthropicContainerSkill{{Type: "anthropic", SkillID: skillID}},
		},
	}

	aResp, err := p.post(ctx, aReq)
	if err != nil {
		return "", "", err
	}

	var text, fileID string
	for _, block := range aResp.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "file":
			fileID = block.FileID
		}
	}
	return text, fileID, nil
}

func (p *AnthropicProvider) post(ctx context.Context, aReq anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(aReq)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if p.apiKey != "" {
		httpReq.Header.Set("x-api-key", p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic api call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("anthropic api returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var aResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&aResp); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}
	return &aResp, nil
}

func convertMessage(msg Message) anthropicMessage {
	switch msg.Role {
	case RoleAssistant:
		blocks := make([]anthropicContentBlock, 0, len(msg.ToolCalls)+1)
		if msg.Content != "" {
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			blocks = append(blocks, anthropicContentBlock{
				Type:  "tool_use",
				ID:    tc.ID,
				Name:  tc.Name,
				Input: json.RawMessage(tc.Arguments),
			})
		}
		return anthropicMessage{Role: "assistant", Content: blocks}
	case RoleTool:
		// Anthropic requires tool results as user messages.
		return anthropicMessage{Role: "user", Content: []anthropicContentBlock{{
			Type:      "tool_result",
			ToolUseID: msg.ToolCallID,
			Content:   msg.Content,
		}}}
	default:
		return anthropicMessage{Role: "user", Content: []anthropicContentBlock{{Type: "text", Text: msg.Content}}}
	}
}

func convertResponse(aResp *anthropicResponse) *ChatResponse {
	resp := &ChatResponse{
		Usage: Usage{
			PromptTokens:     aResp.Usage.InputTokens,
			CompletionTokens: aResp.Usage.OutputTokens,
			TotalTokens:      aResp.Usage.InputTokens + aResp.Usage.OutputTokens,
		},
	}
	for _, block := range aResp.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}
	return resp
}

var _ Provider = (*AnthropicProvider)(nil)
