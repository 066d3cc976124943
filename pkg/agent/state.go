// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent runs the conversational loop: infer, dispatch tool calls,
// reconcile artifacts, repeat until the model answers in plain text.
package agent

import (
	"context"

	"github.com/ZeoXel/skillslike/pkg/llm"
)

// State is the per-thread conversation record: the full message transcript
// plus every artifact id surfaced so far. It is what checkpoint stores
// persist, so it must stay JSON-serializable.
type State struct {
	Messages    []llm.Message `json:"messages"`
	ArtifactIDs []string      `json:"artifact_ids,omitempty"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		Messages:    make([]llm.Message, len(s.Messages)),
		ArtifactIDs: append([]string(nil), s.ArtifactIDs...),
	}
	copy(out.Messages, s.Messages)
	for i := range out.Messages {
		out.Messages[i].ToolCalls = append([]llm.ToolCall(nil), s.Messages[i].ToolCalls...)
	}
	return out
}

// HasArtifact reports whether the state already references an artifact id.
func (s *State) HasArtifact(id string) bool {
	for _, existing := range s.ArtifactIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// CheckpointStore persists conversation state keyed by thread id.
// Concurrent writers follow last-write-wins; the orchestrator serializes
// writers per thread so the race only exists across processes.
type CheckpointStore interface {
	// Get returns the stored state, or nil when the thread is unknown.
	Get(ctx context.Context, threadID string) (*State, error)
	// Put stores the state, replacing any previous checkpoint for the thread.
	Put(ctx context.Context, threadID string, state *State) error
}
