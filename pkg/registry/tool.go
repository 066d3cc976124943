// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ZeoXel/skillslike/pkg/executor"
	"github.com/ZeoXel/skillslike/pkg/llm"
	"github.com/ZeoXel/skillslike/pkg/manifest"
)

// Tool is a skill surfaced to the model: a normalized name, the manifest's
// description, a parameter schema, and an executor bound at build time.
type Tool struct {
	name     string
	manifest manifest.SkillManifest
	params   json.RawMessage
	exec     executor.Executor
}

// NewTool binds a manifest to an executor under the normalized tool name.
// Exported for wiring tools outside the registry, mainly in tests.
func NewTool(m manifest.SkillManifest, exec executor.Executor, params json.RawMessage) *Tool {
	if len(params) == 0 {
		params = buildParameters(m)
	}
	return &Tool{
		name:     ToolName(m.Name),
		manifest: m,
		params:   params,
		exec:     exec,
	}
}

// ToolName normalizes a skill name into a model-safe tool identifier.
func ToolName(skillName string) string {
	return strings.ReplaceAll(skillName, "-", "_")
}

// SkillName reverses ToolName back to the manifest naming convention.
func SkillName(toolName string) string {
	return strings.ReplaceAll(toolName, "_", "-")
}

// Name returns the normalized tool name.
func (t *Tool) Name() string { return t.name }

// Description returns the manifest description, which is also the routing signal.
func (t *Tool) Description() string { return t.manifest.Description }

// Manifest returns the backing skill descriptor.
func (t *Tool) Manifest() manifest.SkillManifest { return t.manifest }

// Parameters returns the JSON schema advertised for the tool's arguments.
func (t *Tool) Parameters() json.RawMessage { return t.params }

// Invoke runs the bound executor.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	return t.exec.Execute(ctx, args)
}

// Definition renders the tool for a model request.
func (t *Tool) Definition() llm.Tool {
	return llm.Tool{Function: llm.FunctionDef{
		Name:        t.name,
		Description: t.manifest.Description,
		Parameters:  t.params,
	}}
}

// buildParameters derives a permissive argument schema from the manifest's
// declared inputs. Skills take free-form arguments; the schema only hints at
// the conventional keys so the model fills them in.
func buildParameters(m manifest.SkillManifest) json.RawMessage {
	type property struct {
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
	}
	props := map[string]property{
		"task": {Type: "string", Description: "What the skill should do"},
	}
	for _, in := range m.Inputs {
		desc := in.Description
		switch in.Type {
		case manifest.IOFile:
			if desc == "" {
				desc = "Artifact id of an uploaded input file"
				if len(in.Formats) > 0 {
					desc += " (" + strings.Join(in.Formats, ", ") + ")"
				}
			}
			props["file_id"] = property{Type: "string", Description: desc}
		case manifest.IOText:
			props["text"] = property{Type: "string", Description: desc}
		case manifest.IOJSON:
			props["data"] = property{Type: "object", Description: desc}
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": true,
	}
	payload, _ := json.Marshal(schema)
	return payload
}
