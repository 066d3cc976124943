// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest defines the declarative skill descriptor model and its
// YAML loader.
package manifest

import (
	"fmt"
	"time"
)

// RuntimeType selects the execution backend for a skill.
type RuntimeType string

const (
	RuntimeDocker    RuntimeType = "docker"
	RuntimeService   RuntimeType = "service"
	RuntimeAnthropic RuntimeType = "anthropic"
)

// IOType describes a skill input or output payload kind.
type IOType string

const (
	IOFile IOType = "file"
	IOText IOType = "text"
	IOJSON IOType = "json"
)

// DefaultTimeoutSeconds bounds skill execution when the descriptor omits a timeout.
const DefaultTimeoutSeconds = 300

// InputSpec describes one accepted skill input.
type InputSpec struct {
	Type        IOType   `yaml:"type"`
	Formats     []string `yaml:"formats,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// OutputSpec describes one produced skill output.
type OutputSpec struct {
	Type        IOType `yaml:"type"`
	Format      string `yaml:"format,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// RuntimeConfig is the runtime half of a manifest: which backend runs the
// skill and how. Required fields depend on Type; missing ones are reported
// as load-time warnings and fail the individual invocation at execution time.
type RuntimeConfig struct {
	Type     RuntimeType       `yaml:"type"`
	Image    string            `yaml:"image,omitempty"`
	Cmd      []string          `yaml:"cmd,omitempty"`
	Endpoint string            `yaml:"endpoint,omitempty"`
	SkillID  string            `yaml:"skill_id,omitempty"`
	Timeout  int               `yaml:"timeout,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
}

// TimeoutDuration returns the configured execution bound.
func (r RuntimeConfig) TimeoutDuration() time.Duration {
	seconds := r.Timeout
	if seconds <= 0 {
		seconds = DefaultTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

// SkillManifest is an immutable skill descriptor. The description doubles as
// the routing signal: the intent router indexes its keywords together with
// the tags.
type SkillManifest struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Inputs      []InputSpec    `yaml:"inputs,omitempty"`
	Outputs     []OutputSpec   `yaml:"outputs,omitempty"`
	Runtime     RuntimeConfig  `yaml:"runtime"`
	Requires    []string       `yaml:"requires,omitempty"`
	Tags        []string       `yaml:"tags,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty"`
}

// validate enforces the structural rules that make a descriptor loadable at
// all. Kind-specific required fields are deliberately not checked here; those
// are soft warnings (see Warnings).
func (m *SkillManifest) validate() error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if m.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch m.Runtime.Type {
	case RuntimeDocker, RuntimeService, RuntimeAnthropic:
	case "":
		return fmt.Errorf("runtime.type is required")
	default:
		return fmt.Errorf("unknown runtime type %q", m.Runtime.Type)
	}
	return nil
}

// Warnings validates a loaded manifest set for non-fatal issues: duplicate
// names and missing runtime-kind-required fields. Keys are skill names.
func Warnings(manifests []SkillManifest) map[string][]string {
	warnings := make(map[string][]string)

	seen := make(map[string]int, len(manifests))
	for _, m := range manifests {
		seen[m.Name]++
	}
	for name, count := range seen {
		if count > 1 {
			warnings[name] = append(warnings[name], fmt.Sprintf("duplicate skill name: %s", name))
		}
	}

	for _, m := range manifests {
		switch m.Runtime.Type {
		case RuntimeDocker:
			if m.Runtime.Image == "" {
				warnings[m.Name] = append(warnings[m.Name], "docker runtime requires 'image' field")
			}
		case RuntimeService:
			if m.Runtime.Endpoint == "" {
				warnings[m.Name] = append(warnings[m.Name], "service runtime requires 'endpoint' field")
			}
		case RuntimeAnthropic:
			if m.Runtime.SkillID == "" {
				warnings[m.Name] = append(warnings[m.Name], "anthropic runtime requires 'skill_id' field")
			}
		}
	}
	return warnings
}
