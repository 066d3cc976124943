// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"sync"
)

// MemoryCheckpointStore keeps thread state in process memory. Suitable for
// tests and single-instance deployments that can tolerate state loss.
type MemoryCheckpointStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewMemoryCheckpointStore creates an empty in-memory store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{states: make(map[string]*State)}
}

// Get implements CheckpointStore.
func (s *MemoryCheckpointStore) Get(_ context.Context, threadID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[threadID].Clone(), nil
}

// Put implements CheckpointStore.
func (s *MemoryCheckpointStore) Put(_ context.Context, threadID string, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[threadID] = state.Clone()
	return nil
}

var _ CheckpointStore = (*MemoryCheckpointStore)(nil)
