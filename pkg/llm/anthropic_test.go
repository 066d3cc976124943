package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicChat_TextAndToolCalls(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic-version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		resp := map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "Let me check."},
				{"type": "tool_use", "id": "call_1", "name": "excel_skill", "input": map[string]any{"path": "a.xlsx"}},
			},
			"usage": map[string]int{"input_tokens": 12, "output_tokens": 7},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewAnthropic("test-key", WithBaseURL(server.URL), WithModel("test-model"))
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "be helpful"},
			{Role: RoleUser, Content: "analyze the sheet"},
		},
		Tools: []Tool{{Function: FunctionDef{Name: "excel_skill", Description: "spreadsheets", Parameters: map[string]any{"type": "object"}}}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if captured.System != "be helpful" {
		t.Errorf("system prompt not extracted: %q", captured.System)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" {
		t.Errorf("unexpected wire messages: %+v", captured.Messages)
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Name != "excel_skill" {
		t.Errorf("tools not forwarded: %+v", captured.Tools)
	}

	if resp.Content != "Let me check." {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "excel_skill" || resp.ToolCalls[0].ID != "call_1" {
		t.Fatalf("unexpected tool calls: %+v", resp.ToolCalls)
	}
	var args map[string]string
	if err := json.Unmarshal([]byte(resp.ToolCalls[0].Arguments), &args); err != nil || args["path"] != "a.xlsx" {
		t.Errorf("unexpected arguments: %q", resp.ToolCalls[0].Arguments)
	}
	if resp.Usage.TotalTokens != 19 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestAnthropicChat_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewAnthropic("key", WithBaseURL(server.URL))
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestAnthropicInvokeSkill(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Container == nil || len(req.Container.Skills) != 1 || req.Container.Skills[0].SkillID != "excel-v1" {
			t.Errorf("container skills not set: %+v", req.Container)
		}
		resp := map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "Sheet processed."},
				{"type": "file", "file_id": "f-123"},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewAnthropic("key", WithBaseURL(server.URL))
	text, fileID, err := p.InvokeSkill(context.Background(), "excel-v1", map[string]any{"file_path": "a.xlsx"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if text != "Sheet processed." {
		t.Errorf("unexpected text: %q", text)
	}
	if fileID != "f-123" {
		t.Errorf("unexpected file id: %q", fileID)
	}
}

func TestScriptedProviderPopsInOrder(t *testing.T) {
	p := NewScriptedProvider(
		ChatResponse{Content: "first"},
		ChatResponse{Content: "second"},
	)

	resp, err := p.Chat(context.Background(), ChatRequest{})
	if err != nil || resp.Content != "first" {
		t.Fatalf("unexpected first response: %v %v", resp, err)
	}
	resp, err = p.Chat(context.Background(), ChatRequest{})
	if err != nil || resp.Content != "second" {
		t.Fatalf("unexpected second response: %v %v", resp, err)
	}
	if _, err := p.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected error when responses exhausted")
	}
	if p.CallCount != 3 {
		t.Errorf("expected 3 calls, got %d", p.CallCount)
	}
}
