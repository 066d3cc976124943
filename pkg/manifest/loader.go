// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads skill descriptors from a directory tree.
type Loader struct {
	dir string
}

// NewLoader creates a loader rooted at dir. The directory must exist.
func NewLoader(dir string) (*Loader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("skills directory does not exist: %s", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("skills path is not a directory: %s", dir)
	}
	return &Loader{dir: dir}, nil
}

// Dir returns the loader's root directory.
func (l *Loader) Dir() string { return l.dir }

// LoadAll reads every *.yaml / *.yml descriptor under the directory,
// recursively, in lexical path order. A single unparsable or empty descriptor
// aborts the whole load: a broken descriptor must not silently shrink the
// available skill set.
func (l *Loader) LoadAll() ([]SkillManifest, error) {
	var paths []string
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan skills directory: %w", err)
	}
	sort.Strings(paths)

	manifests := make([]SkillManifest, 0, len(paths))
	for _, path := range paths {
		m, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// LoadFile parses a single descriptor file.
func (l *Loader) LoadFile(path string) (SkillManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SkillManifest{}, fmt.Errorf("read manifest %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return SkillManifest{}, fmt.Errorf("empty manifest file: %s", path)
	}

	var m SkillManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return SkillManifest{}, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return SkillManifest{}, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	if m.Runtime.Timeout <= 0 {
		m.Runtime.Timeout = DefaultTimeoutSeconds
	}
	return m, nil
}
