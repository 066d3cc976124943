// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifact provides durable blob storage for skill execution outputs.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	serrors "github.com/ZeoXel/skillslike/pkg/errors"
)

const defaultContentType = "application/octet-stream"

// Metadata is the small record persisted alongside each artifact.
type Metadata struct {
	ID          string `json:"file_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// Store is the artifact storage contract. Ids are generated, never derived
// from content, so each id is written exactly once and Put never conflicts.
type Store interface {
	// Put persists content with a fresh unique id and returns the id.
	Put(ctx context.Context, data []byte, filename, contentType string) (string, error)
	// Get returns the stored bytes, or a NOT_FOUND error.
	Get(ctx context.Context, id string) ([]byte, error)
	// Metadata returns the stored metadata record, or a NOT_FOUND error.
	Metadata(ctx context.Context, id string) (*Metadata, error)
	// Delete removes an artifact, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// List returns metadata for all stored artifacts.
	List(ctx context.Context) ([]Metadata, error)
}

// FSStore persists artifacts on the local filesystem: one content file named
// <id><ext> and one <id>.meta JSON sidecar, written as a pair.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem-backed store rooted at baseDir,
// creating the directory if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// Put implements Store.
func (s *FSStore) Put(_ context.Context, data []byte, filename, contentType string) (string, error) {
	id := uuid.NewString()

	ext := ""
	if filename != "" {
		ext = filepath.Ext(filename)
	}
	if filename == "" {
		filename = id + ext
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	contentPath := filepath.Join(s.baseDir, id+ext)
	if err := os.WriteFile(contentPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write artifact content: %w", err)
	}

	meta := Metadata{ID: id, Filename: filename, ContentType: contentType}
	payload, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(s.metaPath(id), payload, 0o600); err != nil {
		// Content without metadata is invalid; unwind the pair.
		os.Remove(contentPath)
		return "", fmt.Errorf("write artifact metadata: %w", err)
	}
	return id, nil
}

// Get implements Store.
func (s *FSStore) Get(_ context.Context, id string) ([]byte, error) {
	path, err := s.contentPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, serrors.New(serrors.CodeNotFound, "artifact not found", err).WithContext("file_id", id)
	}
	return data, nil
}

// Metadata implements Store.
func (s *FSStore) Metadata(_ context.Context, id string) (*Metadata, error) {
	payload, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		return nil, serrors.New(serrors.CodeNotFound, "artifact metadata not found", err).WithContext("file_id", id)
	}
	var meta Metadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, fmt.Errorf("decode artifact metadata: %w", err)
	}
	return &meta, nil
}

// Delete implements Store.
func (s *FSStore) Delete(_ context.Context, id string) (bool, error) {
	matches, err := s.matches(id)
	if err != nil {
		return false, err
	}
	if len(matches) == 0 {
		return false, nil
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return false, err
		}
	}
	return true, nil
}

// List implements Store.
func (s *FSStore) List(_ context.Context) ([]Metadata, error) {
	paths, err := filepath.Glob(filepath.Join(s.baseDir, "*.meta"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make([]Metadata, 0, len(paths))
	for _, path := range paths {
		payload, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(payload, &meta); err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

func (s *FSStore) metaPath(id string) string {
	return filepath.Join(s.baseDir, id+".meta")
}

// contentPath finds the content file for an id, whatever extension it was
// stored with.
func (s *FSStore) contentPath(id string) (string, error) {
	matches, err := s.matches(id)
	if err != nil {
		return "", err
	}
	for _, path := range matches {
		if !strings.HasSuffix(path, ".meta") {
			return path, nil
		}
	}
	return "", serrors.New(serrors.CodeNotFound, "artifact not found", nil).WithContext("file_id", id)
}

func (s *FSStore) matches(id string) ([]string, error) {
	if id == "" || strings.ContainsAny(id, `/\*?[`) {
		return nil, serrors.New(serrors.CodeInvalidInput, "invalid artifact id", nil).WithContext("file_id", id)
	}
	matches, err := filepath.Glob(filepath.Join(s.baseDir, id+"*"))
	if err != nil {
		return nil, err
	}
	// Glob with id* could over-match a prefix; keep exact id stems only.
	out := matches[:0]
	for _, path := range matches {
		base := filepath.Base(path)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if stem == id || base == id {
			out = append(out, path)
		}
	}
	return out, nil
}

var _ Store = (*FSStore)(nil)
