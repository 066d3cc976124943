// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

// Package executor runs skills against their configured runtime backends and
// normalizes every outcome into text, with artifact references carried inline
// via the "file_id: <id>" convention.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/ZeoXel/skillslike/pkg/artifact"
	serrors "github.com/ZeoXel/skillslike/pkg/errors"
	"github.com/ZeoXel/skillslike/pkg/manifest"
)

// Executor runs one skill invocation. Implementations honor the manifest's
// timeout and return either human-readable text (possibly carrying file_id
// markers) or a typed error.
type Executor interface {
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// SkillInvoker calls a vendor-hosted skill by id and returns the response
// text plus an optional artifact id produced by the vendor.
type SkillInvoker interface {
	InvokeSkill(ctx context.Context, skillID string, args map[string]any) (string, string, error)
}

// Deps carries the shared backends executors draw on. Executors that do not
// need a given dependency ignore it.
type Deps struct {
	Artifacts artifact.Store
	Skills    SkillInvoker
	Images    *ImageGenClient

	// ImageGenSkill names the skill whose invocations are diverted to the
	// image generation backend regardless of declared runtime.
	ImageGenSkill string
}

// ForManifest selects the executor for a manifest. The designated image
// generation skill is matched by name before the runtime switch, so its
// descriptor's runtime kind is irrelevant.
func ForManifest(m manifest.SkillManifest, deps Deps) (Executor, error) {
	if deps.ImageGenSkill != "" && m.Name == deps.ImageGenSkill {
		if deps.Images == nil {
			return nil, serrors.New(serrors.CodeConfig, "image generation backend not configured", nil).
				WithContext("skill", m.Name)
		}
		return &imageGenExecutor{client: deps.Images, store: deps.Artifacts, skill: m.Name}, nil
	}

	switch m.Runtime.Type {
	case manifest.RuntimeDocker:
		return &containerExecutor{manifest: m, store: deps.Artifacts}, nil
	case manifest.RuntimeService:
		return &serviceExecutor{manifest: m}, nil
	case manifest.RuntimeAnthropic:
		return &vendorExecutor{manifest: m, invoker: deps.Skills}, nil
	default:
		return nil, serrors.New(serrors.CodeConfig, fmt.Sprintf("no executor for runtime type %q", m.Runtime.Type), nil).
			WithContext("skill", m.Name)
	}
}

// timeoutError rewrites a generic timeout into one naming the skill and its
// configured bound, so operators can tell which descriptor to tune.
func timeoutError(skill string, bound time.Duration, cause error) error {
	return serrors.New(serrors.CodeTimeout,
		fmt.Sprintf("skill %s exceeded its %s timeout", skill, bound), cause).
		WithContext("skill", skill).
		WithContext("timeout", bound.String()).
		WithRecoverable(true)
}
