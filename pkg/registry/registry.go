// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry loads skill manifests and exposes them to the rest of the
// system as model-callable tools.
package registry

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	serrors "github.com/ZeoXel/skillslike/pkg/errors"
	"github.com/ZeoXel/skillslike/pkg/executor"
	"github.com/ZeoXel/skillslike/pkg/manifest"
)

// Registry holds the loaded skill set behind an atomic snapshot. Readers
// always see a complete, consistent set; Reload swaps the snapshot in one
// step so a failed reload leaves the previous set serving.
type Registry struct {
	loader *manifest.Loader
	deps   executor.Deps
	logger *slog.Logger

	snapshot atomic.Pointer[snapshot]
	reloadMu sync.Mutex
}

// snapshot is one immutable view of the skill set. Tools are built lazily on
// first use and cached for the snapshot's lifetime.
type snapshot struct {
	manifests []manifest.SkillManifest
	byName    map[string]manifest.SkillManifest
	warnings  map[string][]string

	toolMu sync.Mutex
	tools  map[string]*Tool
}

// New loads all manifests from the loader's directory and builds the initial
// snapshot. A broken descriptor fails construction.
func New(loader *manifest.Loader, deps executor.Deps, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{loader: loader, deps: deps, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads every descriptor and atomically swaps the snapshot. On
// failure the registry keeps serving the previous snapshot.
func (r *Registry) Reload() error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	manifests, err := r.loader.LoadAll()
	if err != nil {
		r.logger.Error("skill reload failed", "error", err)
		return serrors.New(serrors.CodeConfig, "skill manifests failed to load", err)
	}

	warnings := manifest.Warnings(manifests)
	for skill, ws := range warnings {
		for _, w := range ws {
			r.logger.Warn("skill manifest warning", "skill", skill, "warning", w)
		}
	}

	byName := make(map[string]manifest.SkillManifest, len(manifests))
	for _, m := range manifests {
		// Last duplicate wins for name lookup; load order is preserved in
		// the slice either way.
		byName[m.Name] = m
	}

	r.snapshot.Store(&snapshot{
		manifests: manifests,
		byName:    byName,
		warnings:  warnings,
		tools:     make(map[string]*Tool, len(manifests)),
	})
	r.logger.Info("skill manifests loaded", "count", len(manifests))
	return nil
}

// Manifests returns all loaded manifests in load order.
func (r *Registry) Manifests() []manifest.SkillManifest {
	return r.snapshot.Load().manifests
}

// Manifest looks up a descriptor by skill name.
func (r *Registry) Manifest(name string) (manifest.SkillManifest, bool) {
	m, ok := r.snapshot.Load().byName[name]
	return m, ok
}

// Warnings returns the non-fatal validation findings of the current snapshot.
func (r *Registry) Warnings() map[string][]string {
	return r.snapshot.Load().warnings
}

// Tool returns the tool for a skill name, building it on first use. Accepts
// either the manifest name or the normalized tool name.
func (r *Registry) Tool(name string) (*Tool, error) {
	snap := r.snapshot.Load()

	m, ok := snap.byName[name]
	if !ok {
		m, ok = snap.byName[SkillName(name)]
	}
	if !ok {
		return nil, serrors.New(serrors.CodeNotFound, "unknown skill", nil).WithContext("skill", name)
	}

	snap.toolMu.Lock()
	defer snap.toolMu.Unlock()
	if tool, ok := snap.tools[m.Name]; ok {
		return tool, nil
	}

	exec, err := executor.ForManifest(m, r.deps)
	if err != nil {
		return nil, err
	}
	var params json.RawMessage
	if r.deps.ImageGenSkill != "" && m.Name == r.deps.ImageGenSkill {
		params = json.RawMessage(executor.ImageGenParameters)
	}
	tool := NewTool(m, exec, params)
	snap.tools[m.Name] = tool
	return tool, nil
}

// Tools returns every buildable tool in load order. Skills whose executor
// cannot be constructed are skipped with a warning rather than failing the
// whole set.
func (r *Registry) Tools() []*Tool {
	snap := r.snapshot.Load()
	tools := make([]*Tool, 0, len(snap.manifests))
	seen := make(map[string]bool, len(snap.manifests))
	for _, m := range snap.manifests {
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		tool, err := r.Tool(m.Name)
		if err != nil {
			r.logger.Warn("skill tool unavailable", "skill", m.Name, "error", err)
			continue
		}
		tools = append(tools, tool)
	}
	return tools
}
