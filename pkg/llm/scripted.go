// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"sync"
)

// ScriptedProvider is a mock provider that returns a pre-defined sequence of
// responses. Useful for testing the orchestrator cycle without a live model.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []ChatResponse

	// Err, when set, is returned by every Chat call.
	Err error

	// CallCount tracks how many times Chat has been called.
	CallCount int

	// Requests records every request received, for assertions on the bound
	// tool subset and message history.
	Requests []ChatRequest
}

// NewScriptedProvider creates a provider that pops the given responses in order.
func NewScriptedProvider(responses ...ChatResponse) *ScriptedProvider {
	return &ScriptedProvider{responses: responses}
}

// Chat pops the next scripted response or returns the configured error.
func (s *ScriptedProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount++
	s.Requests = append(s.Requests, req)

	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.responses) == 0 {
		return nil, errors.New("scripted provider: no more responses available")
	}

	resp := s.responses[0]
	s.responses = s.responses[1:]
	if resp.Usage.TotalTokens == 0 {
		resp.Usage = Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}
	}
	return &resp, nil
}

// AddResponse appends a response to the queue.
func (s *ScriptedProvider) AddResponse(resp ChatResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
}

var _ Provider = (*ScriptedProvider)(nil)
